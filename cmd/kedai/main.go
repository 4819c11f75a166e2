package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/docopt/docopt-go"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imba3r/kedai"
	"github.com/imba3r/kedai/config"
	"github.com/imba3r/kedai/livesync"
	"github.com/imba3r/kedai/remote"
	"github.com/imba3r/kedai/session"
	"github.com/imba3r/kedai/shop"
	"github.com/imba3r/kedai/store"
	"github.com/imba3r/kedai/store/badger"
	"github.com/imba3r/kedai/store/memory"
	"github.com/imba3r/kedai/store/sqlite"
	"github.com/imba3r/kedai/websocket"
)

const Version = "0.1.0"

const usage = `Kedai back office sync service.

Usage:
    kedai serve [--config=<path>] [--v=<level>]
    kedai seed [--config=<path>] [--v=<level>]
    kedai watch <collection> [--where=<filter>] [--order-by=<field>] [--desc] [--limit=<n>] [--config=<path>] [--v=<level>]
    kedai orders [--config=<path>] [--v=<level>]
    kedai -h | --help
    kedai --version

Options:
    -h --help           Show this screen.
    --version           Show version.
    --config=<path>     TOML config file. KEDAI_* variables override it.
    --v=<level>         Log verbosity [default: 0].
    --where=<filter>    Only documents matching field, operator, value, e.g. price>=20000.
    --order-by=<field>  Sort by a document field instead of identifier.
    --desc              Sort descending.
    --limit=<n>         Show at most n documents [default: 0].`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], Version)
	if err != nil {
		panic(err)
	}

	flag.Set("logtostderr", "true")
	if v, _ := opts.String("--v"); v != "" {
		flag.Set("v", v)
	}
	flag.CommandLine.Parse(nil)
	defer glog.Flush()

	config.LoadDotenvIfPresent()
	path, _ := opts.String("--config")
	c, err := config.Load(path)
	if err != nil {
		glog.Exitf("[config] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serve_, _ := opts.Bool("serve"); serve_ {
		err = serve(ctx, c)
	} else if seed_, _ := opts.Bool("seed"); seed_ {
		err = seed(ctx, c)
	} else if watch_, _ := opts.Bool("watch"); watch_ {
		collection, _ := opts.String("<collection>")
		var sel store.Selection
		if sel, err = selection(opts); err == nil {
			err = watch(ctx, c, collection, sel)
		}
	} else if orders_, _ := opts.Bool("orders"); orders_ {
		err = orders(ctx, c)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		glog.Exit(err)
	}
}

func openStore(c config.Store) (store.Store, error) {
	switch c.Backend {
	case config.BackendBadger:
		return badger.New(c.Path)
	case config.BackendSQLite:
		return sqlite.New(c.Path)
	default:
		return memory.New(), nil
	}
}

func serve(ctx context.Context, c config.Config) error {
	if err := c.CheckServer(); err != nil {
		return err
	}
	s, err := openStore(c.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", c.Store.Backend, err)
	}
	hub := kedai.New(s, c.LogEvents)
	defer hub.Close()
	hub.Metrics.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	issuer := session.NewIssuer(c.Session.Secret, c.Session.TTL, c.Session.AllowAnonymous)
	router := mux.NewRouter()
	router.Handle("/session", issuer).Methods(http.MethodPost)
	router.HandleFunc("/sync", websocket.NewHandler(hub, issuer, c.AppID).HandlerFunc())
	router.Handle("/metrics", promhttp.HandlerFor(hub.Metrics.Registry, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	server := &http.Server{Addr: c.Addr, Handler: router}
	errs := make(chan error, 1)
	go func() {
		glog.Infof("[serve] app %s on %s (%s store)", c.AppID, c.Addr, c.Store.Backend)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func connect(c config.Config) (*livesync.Manager, *remote.Client, error) {
	sess := session.New(session.NewHTTPProvider(c.ServerURL))
	client, err := remote.NewClient(c.ServerURL, sess)
	if err != nil {
		return nil, nil, err
	}
	return livesync.NewManager(client, sess), client, nil
}

// settle waits for the first snapshot or failure of sub.
func settle[T any](ctx context.Context, sub *livesync.Subscription[T]) error {
	for sub.Loading() {
		select {
		case <-sub.Changes():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return sub.Err()
}

func seed(ctx context.Context, c config.Config) error {
	m, client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	menu, err := livesync.Subscribe(ctx, m, shop.CollectionPath(c.AppID, shop.MenuItems), shop.DecodeMenuItem)
	if err != nil {
		return err
	}
	defer menu.Unsubscribe()
	if err := settle(ctx, menu); err != nil {
		return err
	}

	ids, err := shop.Seed(ctx, livesync.NewGateway(m), c.AppID, menu.View())
	fmt.Printf("created %d menu items\n", len(ids))
	return err
}

func selection(opts docopt.Opts) (store.Selection, error) {
	var sel store.Selection
	if where, _ := opts.String("--where"); where != "" {
		q, err := store.ParseQuery(where)
		if err != nil {
			return sel, err
		}
		sel.Query = q
	}
	sel.Order.OrderBy, _ = opts.String("--order-by")
	desc, _ := opts.Bool("--desc")
	sel.Order.Ascending = !desc
	if sel.Order.OrderBy == "" {
		sel.Order.Ascending = false
	}
	limit, err := opts.Int("--limit")
	if err != nil {
		return sel, fmt.Errorf("--limit: %w", err)
	}
	sel.Limit.Limit = limit
	return sel, sel.Validate()
}

func raw(id string, data []byte) (json.RawMessage, error) {
	return data, nil
}

func watch(ctx context.Context, c config.Config, collection string, sel store.Selection) error {
	m, client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := livesync.SubscribeSelected(ctx, m, shop.CollectionPath(c.AppID, collection), sel, raw)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	for {
		select {
		case <-sub.Changes():
			if err := sub.Err(); err != nil {
				return err
			}
			ids, view := sub.IDs(), sub.View()
			fmt.Printf("--- %s: %d documents\n", collection, len(ids))
			for _, id := range ids {
				fmt.Printf("%s %s\n", id, view[id])
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func orders(ctx context.Context, c config.Config) error {
	m, client, err := connect(c)
	if err != nil {
		return err
	}
	defer client.Close()

	b, err := shop.Open(ctx, m, c.AppID)
	if err != nil {
		return err
	}
	defer b.Close()

	changed := make(chan struct{}, 1)
	b.OnOrderRows(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	for {
		select {
		case <-changed:
			if err := b.OrderRowsErr(); err != nil {
				return err
			}
			printOrders(b)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func printOrders(b *shop.Backoffice) {
	rows := shop.Recent(b.OrderRows(), -1)
	page := shop.Paginate(rows, 1, shop.PageSize)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPELANGGAN\tTANGGAL\tITEM\tTOTAL\tSTATUS")
	for _, row := range page.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", row.ID, row.CustomerName, row.Date, row.Items, row.Total, row.Status)
	}
	w.Flush()
	stats := b.Stats()
	fmt.Printf("%s | pendapatan %s | %d pelanggan\n\n", page.Summary("pesanan"), stats.Revenue, stats.Customers)
}
