package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription confirmation.
	SubscribeTimeout time.Duration
	// ChannelBuffer is the per-subscription notification buffer.
	ChannelBuffer int
}

// DefaultWSConfig returns the default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		ChannelBuffer:    1024,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *zap.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to notification channel
	subs   map[int64]chan AccountUpdate
	subsMu sync.Mutex

	// pendingSubs maps request ID to channel waiting for the server's
	// reply, confirmation or error
	pendingSubs   map[uint64]chan subscribeResult
	pendingSubsMu sync.Mutex

	// done closes on transport failure or Close; err holds the cause
	done     chan struct{}
	doneOnce sync.Once
	err      error
	errMu    sync.Mutex

	wg sync.WaitGroup
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, logger *zap.Logger) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger.Named("ws"),
		subs:        make(map[int64]chan AccountUpdate),
		pendingSubs: make(map[uint64]chan subscribeResult),
		done:        make(chan struct{}),
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// SubscribeProgram subscribes to account changes owned by a program.
func (c *WSClientImpl) SubscribeProgram(ctx context.Context, filter ProgramFilter) (*Subscription, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	subID, err := c.sendSubscribe(ctx, filter)
	if err != nil {
		return nil, err
	}

	ch := make(chan AccountUpdate, c.config.ChannelBuffer)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	return &Subscription{
		ID:      subID,
		Updates: ch,
		cancel: func(ctx context.Context) error {
			return c.unsubscribe(ctx, subID)
		},
	}, nil
}

// Done is closed when the connection is lost or the client closed.
func (c *WSClientImpl) Done() <-chan struct{} {
	return c.done
}

// Err returns the transport failure after Done closes.
func (c *WSClientImpl) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close closes the WebSocket connection and all subscriptions.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.shutdown(nil)
	c.wg.Wait()
	return nil
}

// sendSubscribe issues the programSubscribe request and waits for the
// server-assigned subscription ID.
func (c *WSClientImpl) sendSubscribe(ctx context.Context, filter ProgramFilter) (int64, error) {
	reqID := c.requestID.Add(1)

	var filters []interface{}
	if filter.DataSize > 0 {
		filters = append(filters, map[string]interface{}{"dataSize": filter.DataSize})
	}
	if filter.Memcmp != nil {
		filters = append(filters, map[string]interface{}{
			"memcmp": map[string]interface{}{
				"offset": filter.Memcmp.Offset,
				"bytes":  base58.Encode(filter.Memcmp.Bytes),
			},
		})
	}

	opts := map[string]interface{}{
		"encoding":   "base64",
		"commitment": "confirmed",
	}
	if len(filters) > 0 {
		opts["filters"] = filters
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "programSubscribe",
		Params:  []interface{}{filter.ProgramID, opts},
	}

	confirmCh := make(chan subscribeResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	dropPending := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		dropPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case res, ok := <-confirmCh:
		if !ok {
			// Channel closed during shutdown.
			return 0, fmt.Errorf("client closed")
		}
		if res.err != nil {
			return 0, fmt.Errorf("subscribe rejected: %w", res.err)
		}
		return res.id, nil
	case <-time.After(c.config.SubscribeTimeout):
		dropPending()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		dropPending()
		return 0, ctx.Err()
	}
}

// unsubscribe releases a subscription on the server and closes its channel.
func (c *WSClientImpl) unsubscribe(ctx context.Context, subID int64) error {
	c.subsMu.Lock()
	ch, ok := c.subs[subID]
	if ok {
		delete(c.subs, subID)
		close(ch)
	}
	c.subsMu.Unlock()

	if !ok || c.closed.Load() {
		return nil
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "programUnsubscribe",
		Params:  []interface{}{subID},
	}
	if err := c.writeJSON(req); err != nil {
		return fmt.Errorf("write unsubscribe: %w", err)
	}
	return nil
}

func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
}

// shutdown records the failure cause and closes all channels exactly once.
func (c *WSClientImpl) shutdown(cause error) {
	c.doneOnce.Do(func() {
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()

		close(c.done)

		c.subsMu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.subsMu.Unlock()

		c.pendingSubsMu.Lock()
		for id, ch := range c.pendingSubs {
			close(ch)
			delete(c.pendingSubs, id)
		}
		c.pendingSubsMu.Unlock()
	})
}

// readLoop reads messages and dispatches to subscribers. On a transport
// error the client is torn down; reconnecting is the caller's decision.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("connection lost", zap.Error(err))
				c.shutdown(fmt.Errorf("read message: %w", err))
			}
			return
		}

		c.handleMessage(message)
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				// Reader notices a dead connection; nothing to do here.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

// handleMessage processes one incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "programNotification" {
		c.handleProgramNotification(&notif)
		return
	}

	var errResp struct {
		ID    uint64    `json:"id"`
		Error *RPCError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.handleErrorResponse(errResp.ID, errResp.Error)
	}
}

// subscribeResult carries the server's reply to a subscribe request.
type subscribeResult struct {
	id  int64
	err error
}

func (c *WSClientImpl) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.deliverPending(resp.ID, subscribeResult{id: resp.Result})
}

// handleErrorResponse routes a server error to the request waiting on
// it. Errors for requests nobody waits on are only logged.
func (c *WSClientImpl) handleErrorResponse(reqID uint64, rpcErr *RPCError) {
	if c.deliverPending(reqID, subscribeResult{err: rpcErr}) {
		return
	}
	c.logger.Warn("error response",
		zap.Uint64("request_id", reqID),
		zap.Int("code", rpcErr.Code),
		zap.String("message", rpcErr.Message))
}

// deliverPending hands the server's reply to the waiting subscriber,
// if any.
func (c *WSClientImpl) deliverPending(reqID uint64, res subscribeResult) bool {
	c.pendingSubsMu.Lock()
	ch, ok := c.pendingSubs[reqID]
	if ok {
		delete(c.pendingSubs, reqID)
	}
	c.pendingSubsMu.Unlock()

	if ok {
		select {
		case ch <- res:
		default:
		}
	}
	return ok
}

func (c *WSClientImpl) handleProgramNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	update := AccountUpdate{
		Pubkey:   value.Pubkey,
		Lamports: value.Account.Lamports,
		Owner:    value.Account.Owner,
	}
	if notif.Params.Result.Context != nil {
		update.Slot = notif.Params.Result.Context.Slot
	}
	if len(value.Account.Data) >= 1 {
		raw, err := base64.StdEncoding.DecodeString(value.Account.Data[0])
		if err != nil {
			c.logger.Warn("bad account data encoding",
				zap.String("pubkey", value.Pubkey), zap.Error(err))
			return
		}
		update.Data = raw
	}

	// Send under subsMu so Unsubscribe cannot close the channel mid-send.
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if ch, ok := c.subs[notif.Params.Subscription]; ok {
		select {
		case ch <- update:
		default:
			c.logger.Warn("subscriber buffer full, dropping update",
				zap.Int64("subscription", notif.Params.Subscription),
				zap.String("pubkey", value.Pubkey))
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext        `json:"context"`
	Value   wsProgramAccValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsProgramAccValue struct {
	Pubkey  string        `json:"pubkey"`
	Account wsAccountInfo `json:"account"`
}

type wsAccountInfo struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}
