package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/c0deZ3R0/go-inventory-sync/inventory"
)

const help = `commands:
  products                         list products
  orders                           list orders
  create <name> <price> <qty> <unit>
  qty <id> <quantity>              set a product quantity
  delete <id> [force]              delete a product
  tag <tag> <orderID>...           add a tag to orders
  untag <orderID> <tag>            remove a tag from an order
  status <orderID> <status>        set an order status
  online | offline                 simulate connectivity
  sync                             replay queued operations now
  refresh                          reload from the server
  pending                          show queued and failed operations
  quit`

type shell struct {
	client    *inventory.Client
	setOnline func(online bool)
	out       io.Writer
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(s.out, help)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.prompt())
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}
		if err := s.exec(ctx, strings.Fields(line)); err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *shell) prompt() string {
	state := "online"
	if !s.client.IsOnline() {
		state = "offline"
	}
	if n := s.client.PendingCount(); n > 0 {
		return fmt.Sprintf("[%s, %d pending]> ", state, n)
	}
	return fmt.Sprintf("[%s]> ", state)
}

func (s *shell) exec(ctx context.Context, args []string) error {
	switch cmd := args[0]; cmd {
	case "help":
		fmt.Fprintln(s.out, help)
	case "products":
		s.printProducts()
	case "orders":
		s.printOrders()
	case "create":
		if len(args) != 5 {
			return usage("create <name> <price> <qty> <unit>")
		}
		p, err := s.client.Products.Create(ctx, inventory.ProductForm{Name: args[1], Price: args[2], Quantity: args[3], Unit: args[4]})
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "created %d %s\n", p.ID, p.Name)
	case "qty":
		if len(args) != 3 {
			return usage("qty <id> <quantity>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		qty, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("quantity must be a whole number")
		}
		_, err = s.client.Products.Update(ctx, id, inventory.ProductPatch{Quantity: &qty})
		return err
	case "delete":
		if len(args) < 2 {
			return usage("delete <id> [force]")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		err = s.client.Products.Delete(ctx, id, len(args) > 2 && args[2] == "force")
		if inventory.NeedsForce(err) {
			return fmt.Errorf("%w (retry with: delete %d force)", err, id)
		}
		return err
	case "tag":
		if len(args) < 3 {
			return usage("tag <tag> <orderID>...")
		}
		ids, err := parseIDs(args[2:])
		if err != nil {
			return err
		}
		return s.client.Orders.AddTags(ctx, []string{args[1]}, ids)
	case "untag":
		if len(args) != 3 {
			return usage("untag <orderID> <tag>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		return s.client.Orders.RemoveTag(ctx, id, args[2])
	case "status":
		if len(args) != 3 {
			return usage("status <orderID> <status>")
		}
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		status := inventory.OrderStatus(strings.ToUpper(args[2]))
		_, err = s.client.Orders.Update(ctx, id, inventory.OrderPatch{Status: &status})
		return err
	case "online":
		s.setOnline(true)
	case "offline":
		s.setOnline(false)
	case "sync":
		n, err := s.client.Kick(ctx)
		fmt.Fprintf(s.out, "replayed %d operations\n", n)
		return err
	case "refresh":
		return s.client.Refresh(ctx)
	case "pending":
		s.printPending()
	default:
		return fmt.Errorf("unknown command %q, try help", cmd)
	}
	return nil
}

func (s *shell) printProducts() {
	state := s.client.Products.State()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPRICE\tQTY\tUNIT\tSTATUS")
	for _, p := range state.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, p.Price.StringFixed(2), p.Quantity, p.Unit, p.Status)
	}
	tw.Flush()
	if state.Error != "" {
		fmt.Fprintf(s.out, "last error (%s): %s\n", state.ErrorKind, state.Error)
	}
}

func (s *shell) printOrders() {
	state := s.client.Orders.State()
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tSTATUS\tTAGS")
	for _, o := range state.Items {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", o.ID, o.CustomerName, o.Status, strings.Join(o.Tags, ","))
	}
	tw.Flush()
	if state.Error != "" {
		fmt.Fprintf(s.out, "last error (%s): %s\n", state.ErrorKind, state.Error)
	}
}

func (s *shell) printPending() {
	products, orders := s.client.Products.State(), s.client.Orders.State()
	for _, domain := range []struct {
		name        string
		pending     int
		unrecovered int
	}{
		{inventory.ProductsDomain, len(products.PendingOperations), len(products.Unrecoverable)},
		{inventory.OrdersDomain, len(orders.PendingOperations), len(orders.Unrecoverable)},
	} {
		fmt.Fprintf(s.out, "%s: %d pending, %d unrecoverable\n", domain.name, domain.pending, domain.unrecovered)
	}
	for _, op := range append(products.PendingOperations, orders.PendingOperations...) {
		fmt.Fprintf(s.out, "  %s %s %s\n", op.Type, op.Method, op.Endpoint)
	}
}

func usage(s string) error { return fmt.Errorf("usage: %s", s) }

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
