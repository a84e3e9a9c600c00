package inventory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c0deZ3R0/go-inventory-sync/connectivity"
	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
	"github.com/c0deZ3R0/go-inventory-sync/synckit"
)

// Client wires both domains to one connectivity monitor. Going online
// triggers a drain of each domain's queue.
type Client struct {
	Products *Products
	Orders   *Orders

	monitor *connectivity.Monitor
	logger  *logging.Logger

	mu          sync.Mutex
	started     bool
	closed      bool
	unsubscribe func()
	drains      sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewClient creates a client. opts are handed to both stores and engines,
// so a persister or metrics collector given here is shared.
func NewClient(products ProductAPI, orders OrderAPI, monitor *connectivity.Monitor, opts ...synckit.Option) *Client {
	opts = append([]synckit.Option{synckit.WithInitialOnline(monitor.IsOnline())}, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		Products: NewProducts(products, opts...),
		Orders:   NewOrders(orders, opts...),
		monitor:  monitor,
		logger:   synckit.LoggerOf(opts...).WithComponent("inventory"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start restores persisted state, attaches to the monitor and replays
// anything left in the queues.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.E(errors.Op("inventory.Start"), errors.Component("inventory"), errors.KindClosed, "client is closed")
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.Products.Store().Rehydrate(ctx); err != nil {
		c.logger.LogError(ctx, err, "could not restore products", slog.String("domain", ProductsDomain))
	}
	if err := c.Orders.Store().Rehydrate(ctx); err != nil {
		c.logger.LogError(ctx, err, "could not restore orders", slog.String("domain", OrdersDomain))
	}

	unsub := c.monitor.Subscribe(c.onConnectivity)
	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()

	// The monitor may have changed between construction and subscribing.
	online := c.monitor.IsOnline()
	c.Products.Store().SetOnline(online)
	c.Orders.Store().SetOnline(online)

	_, err := c.Kick(ctx)
	return err
}

func (c *Client) onConnectivity(online bool) {
	c.Products.Store().SetOnline(online)
	c.Orders.Store().SetOnline(online)
	if !online {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.drains.Add(2)
	c.mu.Unlock()

	go func() {
		defer c.drains.Done()
		if _, err := c.Products.Engine().Drain(c.ctx); err != nil {
			c.logger.LogError(c.ctx, err, "products drain failed")
		}
	}()
	go func() {
		defer c.drains.Done()
		if _, err := c.Orders.Engine().Drain(c.ctx); err != nil {
			c.logger.LogError(c.ctx, err, "orders drain failed")
		}
	}()
}

// Kick drains both domains if online and anything is queued. Hosts call it
// on every render or user-initiated retry.
func (c *Client) Kick(ctx context.Context) (int, error) {
	var drained int
	var errs []error
	if res, err := c.Products.Engine().Kick(ctx); err != nil {
		errs = append(errs, err)
	} else if res != nil {
		drained += res.Succeeded
	}
	if res, err := c.Orders.Engine().Kick(ctx); err != nil {
		errs = append(errs, err)
	} else if res != nil {
		drained += res.Succeeded
	}
	if len(errs) > 0 {
		return drained, errors.E(errors.OpDrain, errors.Component("inventory"), errs[0])
	}
	return drained, nil
}

// Refresh reloads both domains from the server.
func (c *Client) Refresh(ctx context.Context) error {
	if err := c.Products.Refresh(ctx); err != nil {
		return err
	}
	return c.Orders.Refresh(ctx)
}

// PendingCount is the number of operations waiting across both domains.
func (c *Client) PendingCount() int {
	return c.Products.Store().PendingCount() + c.Orders.Store().PendingCount()
}

// IsOnline reports the shared connectivity flag.
func (c *Client) IsOnline() bool { return c.monitor.IsOnline() }

// Wait blocks until drains started by connectivity changes have finished.
func (c *Client) Wait() { c.drains.Wait() }

// Close detaches from the monitor, waits for running drains and stops both
// engines. Queued operations stay persisted for the next start.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsub := c.unsubscribe
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.drains.Wait()
	c.cancel()
	c.Products.Engine().Close()
	c.Orders.Engine().Close()
	return nil
}
