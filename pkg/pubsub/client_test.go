package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/topupstore-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "topup-prod"}
	cases := []struct {
		in   string
		want string
	}{
		{in: "orders-placed", want: "projects/topup-prod/topics/orders-placed"},
		{in: "  orders-placed ", want: "projects/topup-prod/topics/orders-placed"},
		{in: "projects/other/topics/orders-placed", want: "projects/other/topics/orders-placed"},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := c.topicResourceName(tc.in); got != tc.want {
			t.Fatalf("topicResourceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	if got := (&Client{}).topicResourceName("orders"); got != "" {
		t.Fatalf("expected empty name without project, got %q", got)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := NewClient(ctx, config.GCPConfig{}, config.PubSubConfig{OrdersTopic: "orders"}, nil); err != errProjectIDRequired {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(ctx, config.GCPConfig{ProjectID: "p"}, config.PubSubConfig{}, nil); err != errNoOrdersTopic {
		t.Fatalf("expected orders topic error, got %v", err)
	}
}

func TestNilClientHandles(t *testing.T) {
	var c *Client
	if c.Publisher("orders") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if c.OrdersPublisher() != nil {
		t.Fatal("expected nil orders publisher from nil client")
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op, got %v", err)
	}
}
