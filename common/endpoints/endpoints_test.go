package endpoints

import (
	"context"
	"io/ioutil"
	"net"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twitter/jobgate/common/stats"
)

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}
	stat := stats.DefaultStatsReceiver()
	stat.Counter("hits").Inc(4)

	extra := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("extra")) })
	s := NewTwitterServer(Addr(ln.Addr().String()), stat, map[string]http.Handler{"/status": extra})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.serve(ctx, ln) }()

	root := "http://" + ln.Addr().String()
	assert.Equal(t, "ok", get(t, root+"/health"))
	assert.Equal(t, `{"hits":4}`, get(t, root+"/admin/metrics.json"))
	assert.Equal(t, "extra", get(t, root+"/status"))
	assert.Contains(t, get(t, root+"/nope"), "/status")

	cancel()
	assert.NoError(t, <-done)
}

func get(t *testing.T, url string) string {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := ioutil.ReadAll(resp.Body)
	return string(data)
}
