package moderation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ihub-edu/hallpass/moderation/actionlog"
)

func TestSlackNotifierSend(t *testing.T) {
	assert := assert.New(t)

	var got int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got++
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), 100)
	err := n.SendAction(context.Background(), &actionlog.Action{
		Identity: "203.0.113.1",
		Kind:     actionlog.KindBlock,
		Reason:   "testing",
		Actor:    ActorSystem,
	})
	assert.NoError(err)
	assert.Equal(1, got)
}

func TestSlackNotifierPerDayCap(t *testing.T) {
	assert := assert.New(t)

	var got int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got++
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL, srv.Client(), 2)
	act := &actionlog.Action{Identity: "203.0.113.2", Kind: actionlog.KindUnblock, Actor: "admin"}
	for i := 0; i < 5; i++ {
		// suppressed sends are not an error
		assert.NoError(n.SendAction(context.Background(), act))
	}
	assert.Equal(2, got)
}

func TestSlackNotifierDefaultClientBounded(t *testing.T) {
	assert := assert.New(t)

	// sends happen on the block path of live requests; the default client
	// must never wait forever on a hung webhook
	n := NewSlackNotifier("http://127.0.0.1:0/hook", nil, 10)
	assert.Equal(5*time.Second, n.Client.Timeout)
}
