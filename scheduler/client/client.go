// Package client reads a running daemon's status over its HTTP endpoint.
package client

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethgrid/pester"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/jobgate/common"
	"github.com/twitter/jobgate/scheduler/domain"
)

// DefaultHTTPTries covers a daemon that is briefly busy or restarting.
const DefaultHTTPTries = 4

// MakePesterClient returns an http client that retries with exponential backoff.
func MakePesterClient(tries int) *pester.Client {
	client := pester.New()
	client.Backoff = pester.ExponentialBackoff
	client.MaxRetries = tries
	client.Timeout = common.DefaultClientTimeout
	client.LogHook = func(e pester.ErrEntry) {
		log.Debugf("Retrying after failed attempt: %+v", e)
	}
	return client
}

// StatusClient fetches /status from a daemon.
type StatusClient struct {
	addr   string
	client *pester.Client
}

// NewStatusClient talks to addr, a host:port or a base URL.
func NewStatusClient(addr string, client *pester.Client) *StatusClient {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	if client == nil {
		client = MakePesterClient(DefaultHTTPTries)
	}
	return &StatusClient{addr: strings.TrimRight(addr, "/"), client: client}
}

// GetStatus returns the daemon's current snapshot, only the jobs in state if it is not empty.
func (c *StatusClient) GetStatus(state string) (*domain.StatusSnapshot, error) {
	u := c.addr + "/status"
	if state != "" {
		u += "?state=" + url.QueryEscape(strings.ToUpper(state))
	}
	resp, err := c.client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("getting status from %s: %v", c.addr, err)
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading status from %s: %v", c.addr, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status from %s: %s: %s", c.addr, resp.Status, strings.TrimSpace(string(body)))
	}
	snap := &domain.StatusSnapshot{}
	if err := json.Unmarshal(body, snap); err != nil {
		return nil, fmt.Errorf("decoding status from %s: %v", c.addr, err)
	}
	return snap, nil
}

// NewTestStatusClient is a StatusClient with a single try and a short timeout.
func NewTestStatusClient(addr string) *StatusClient {
	c := MakePesterClient(1)
	c.Timeout = time.Second
	return NewStatusClient(addr, c)
}
