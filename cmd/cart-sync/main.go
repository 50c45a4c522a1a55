// Command cart-sync is a small CLI over the cart façade. It talks to the
// remote cart API while it is reachable and falls back to the local
// file-backed store for the rest of the run when it is not.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/cartbridge/internal/availability"
	"github.com/xenking/cartbridge/internal/cartsync"
	"github.com/xenking/cartbridge/internal/domain/cart"
	"github.com/xenking/cartbridge/internal/remote"
	"github.com/xenking/cartbridge/internal/storage/local"
)

const usage = `usage: cart-sync [flags] <command> [args]

commands:
  list                                     show the cart
  add <id> <name> <price> <qty> [discount]  add an item
  remove <id>                              remove an item
  update <id> <qty>                        set an item quantity
  clear                                    empty the cart
  total                                    discount-aware cart total
  count                                    total item quantity
`

func main() {
	var (
		apiURL  string
		dataDir string
		userID  string
		reprobe time.Duration
		verbose bool
	)

	flag.StringVar(&apiURL, "api-url", "http://localhost:8080", "cart API base URL (or CARTB_API_URL env)")
	flag.StringVar(&dataDir, "data-dir", "", "directory for local cart files (default: user cache dir)")
	flag.StringVar(&userID, "user", "", "cart owner (default: guest)")
	flag.DurationVar(&reprobe, "reprobe", 0, "re-probe a failed API at this interval (0 disables)")
	flag.BoolVar(&verbose, "verbose", false, "log fallback decisions")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if v := os.Getenv("CARTB_API_URL"); v != "" && apiURL == "http://localhost:8080" {
		apiURL = v
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, apiURL, dataDir, userID, reprobe, verbose, flag.Args()); err != nil {
		slog.Error("cart-sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, apiURL, dataDir, userID string, reprobe time.Duration, verbose bool, args []string) error {
	lg := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "create logger")
		}
		defer func() { _ = dev.Sync() }()
		lg = dev
	}

	if dataDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return errors.Wrap(err, "resolve cache dir")
		}
		dataDir = filepath.Join(cacheDir, "cartbridge")
	}

	client, err := remote.NewClient(remote.Config{BaseURL: apiURL, Logger: lg})
	if err != nil {
		return err
	}
	store, err := local.NewStore(dataDir, lg)
	if err != nil {
		return err
	}

	state := availability.NewState(lg)
	monitor := availability.NewMonitor(state, client, availability.Config{
		ProbeUserID:     cart.NormalizeUserID(userID),
		ReprobeInterval: reprobe,
	}, lg)
	monitor.Probe(ctx)
	go monitor.Run(ctx)

	syncer := cartsync.NewSyncer(client, store, state, cartsync.Config{Logger: lg})

	return dispatch(ctx, syncer, userID, args)
}

func dispatch(ctx context.Context, syncer *cartsync.Syncer, userID string, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "list":
		res := syncer.Get(ctx, userID)
		if !res.Success {
			return errors.New(res.Message)
		}
		printItems(res.Items)
		return nil

	case "add":
		if len(rest) < 4 {
			return errors.New("add needs <id> <name> <price> <qty> [discount]")
		}
		price, err := decimal.NewFromString(rest[2])
		if err != nil {
			return errors.Wrap(err, "parse price")
		}
		qty, err := cart.ParseQuantity(rest[3])
		if err != nil {
			return err
		}
		discount := decimal.Zero
		if len(rest) > 4 {
			if discount, err = decimal.NewFromString(rest[4]); err != nil {
				return errors.Wrap(err, "parse discount")
			}
		}
		res := syncer.Add(ctx, userID, cart.Product{
			ID:       rest[0],
			Name:     rest[1],
			Price:    price,
			Discount: discount,
		}, qty)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Printf("%s (%d items in cart)\n", res.Message, res.ItemCount)
		return nil

	case "remove":
		if len(rest) != 1 {
			return errors.New("remove needs <id>")
		}
		res := syncer.Remove(ctx, userID, rest[0])
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Printf("%s (%d items in cart)\n", res.Message, res.ItemCount)
		return nil

	case "update":
		if len(rest) != 2 {
			return errors.New("update needs <id> <qty>")
		}
		qty, err := cart.ParseQuantity(rest[1])
		if err != nil {
			return err
		}
		res := syncer.UpdateQuantity(ctx, userID, rest[0], qty)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Printf("%s (%d items in cart)\n", res.Message, res.ItemCount)
		return nil

	case "clear":
		res := syncer.Clear(ctx, userID)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Println(res.Message)
		return nil

	case "total":
		res := syncer.Total(ctx, userID)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Println(res.Total.StringFixed(2))
		return nil

	case "count":
		res := syncer.ItemCount(ctx, userID)
		if !res.Success {
			return errors.New(res.Message)
		}
		fmt.Println(res.Count)
		return nil

	default:
		return errors.Errorf("unknown command %q", cmd)
	}
}

func printItems(items []cart.Item) {
	if len(items) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, it := range items {
		line := fmt.Sprintf("%-20s %-30s x%-3d %10s", it.ID, it.Name, it.Quantity,
			cart.Subtotal([]cart.Item{it}).StringFixed(2))
		if !it.Discount.IsZero() {
			line += fmt.Sprintf("  (-%s%%)", it.Discount.String())
		}
		fmt.Println(line)
	}
	fmt.Printf("total: %s\n", cart.Subtotal(items).StringFixed(2))
}
