package remote

import (
	"net/rpc"
	"sync"

	"epaperd/pkg/panel"
	"epaperd/pkg/proto"
)

func New(addr string) (*Client, error) {
	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, err
	}

	return &Client{rpc: client}, nil
}

// Client forwards renderer calls to a Proxy.
type Client struct {
	rpc *rpc.Client

	mu     sync.Mutex
	parity bool
}

func (c *Client) Init(m panel.Model) error {
	return c.rpc.Call("Service.Init", ModelRequest{Model: m}, nil)
}

func (c *Client) Command(code uint8) error {
	return c.rpc.Call("Service.Command", code, nil)
}

func (c *Client) Load(l proto.Loader, data []byte) error {
	return c.rpc.Call("Service.Load", &LoadRequest{Loader: l, Data: data}, nil)
}

func (c *Client) Show(m panel.Model) error {
	return c.rpc.Call("Service.Show", ModelRequest{Model: m}, nil)
}

func (c *Client) Sleep() error {
	return c.rpc.Call("Service.Sleep", EmptyRequest{}, nil)
}

// Parity asks the proxy; the last known answer is kept if the call fails.
func (c *Client) Parity() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	var parity bool
	if err := c.rpc.Call("Service.Parity", EmptyRequest{}, &parity); err == nil {
		c.parity = parity
	}
	return c.parity
}

func (c *Client) Close() error {
	return c.rpc.Close()
}
