package ipc

import (
	"errors"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"reshelve/internal/classify"
	"reshelve/internal/history"
	"reshelve/internal/migration"
)

// Client provides RPC access to a running reshelve server.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Plan builds a plan on the server.
func (c *Client) Plan(req PlanRequest) (*migration.Plan, error) {
	var resp PlanResponse
	if err := c.client.Call("Reshelve.Plan", req, &resp); err != nil {
		return nil, err
	}
	return resp.Plan, nil
}

// Validate checks a plan on the server.
func (c *Client) Validate(req ValidateRequest) (migration.ValidationResult, error) {
	var resp ValidateResponse
	if err := c.client.Call("Reshelve.Validate", req, &resp); err != nil {
		return migration.ValidationResult{}, err
	}
	return resp.Result, nil
}

// Execute runs a migration on the server. An aborted run returns its result
// together with the structured *migration.Error.
func (c *Client) Execute(req ExecuteRequest) (*migration.Result, error) {
	var resp ExecuteResponse
	if err := c.client.Call("Reshelve.Execute", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return resp.Result, resp.Error
	}
	return resp.Result, nil
}

// History lists history entries newest first.
func (c *Client) History(req HistoryRequest) ([]history.Entry, error) {
	var resp HistoryResponse
	if err := c.client.Call("Reshelve.History", req, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Statistics returns aggregate history figures.
func (c *Client) Statistics() (history.Statistics, error) {
	var resp StatisticsResponse
	if err := c.client.Call("Reshelve.Statistics", StatisticsRequest{}, &resp); err != nil {
		return history.Statistics{}, err
	}
	return resp.Statistics, nil
}

// Inspect returns an artist's compliance score.
func (c *Client) Inspect(artistID string) (classify.Score, error) {
	var resp InspectResponse
	if err := c.client.Call("Reshelve.Inspect", InspectRequest{ArtistID: artistID}, &resp); err != nil {
		return classify.Score{}, err
	}
	return resp.Score, nil
}

// IsServerError reports whether err was returned by the remote service
// rather than by the transport.
func IsServerError(err error) bool {
	var serverErr rpc.ServerError
	return errors.As(err, &serverErr)
}
