package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"mia/apps/backend/internal/bootstrap"
	"mia/apps/backend/internal/catalog"
	"mia/apps/backend/internal/chat"
	"mia/apps/backend/internal/db"
	"mia/apps/backend/internal/guard"
	"mia/apps/backend/internal/intent"
	"mia/apps/backend/internal/redflag"
	"mia/apps/backend/internal/seed"
	"mia/apps/backend/internal/store"
	"mia/apps/backend/internal/textnorm"
)

type classification struct {
	Intent   intent.Result  `json:"intent"`
	RedFlag  redflag.Result `json:"redFlag"`
	Gate     string         `json:"gate"`
	GateHit  string         `json:"gateMatched,omitempty"`
	Override bool           `json:"educationalOverride,omitempty"`
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <message>",
		Short: "Show the intent, red flags and gate decision for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message := strings.Join(args, " ")
			dict, err := bootstrap.LoadDictionary(cfg)
			if err != nil {
				return err
			}
			fixture, err := seed.Load(cfg.SeedPath)
			if err != nil {
				return err
			}

			decision := guard.New(bootstrap.GateConfig(cfg)).Check(message)
			out := classification{
				Intent:   intent.NewClassifier(dict).Detect(message),
				RedFlag:  redflag.Evaluate(textnorm.Normalize(message), fixture.Patterns),
				Gate:     string(decision.Outcome),
				GateHit:  decision.Matched,
				Override: decision.EducationalOverride,
			}
			if out.Gate == "" {
				out.Gate = "none"
			}
			if outputJSON {
				return printJSON(out)
			}

			name := out.Intent.Intent
			if name == "" {
				name = "(generic)"
			}
			fmt.Printf("intent:    %s\n", name)
			fmt.Printf("strategy:  %v\n", out.Intent.SearchStrategy)
			fmt.Printf("red flag:  %t %s %v\n", out.RedFlag.IsRedFlag, out.RedFlag.Severity, out.RedFlag.DetectedPatterns)
			fmt.Printf("gate:      %s %s\n", out.Gate, out.GateHit)
			return nil
		},
	}
}

func newSearchCmd() *cobra.Command {
	var filters catalog.Filters

	cmd := &cobra.Command{
		Use:   "search <terms>",
		Short: "Run the generic catalog search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			stores, closeFn, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			dict, err := bootstrap.LoadDictionary(cfg)
			if err != nil {
				return err
			}
			engine := catalog.NewEngine(stores.Catalog, intent.NewClassifier(dict), catalog.EngineConfig{Limit: cfg.ProductLimit}, logger.Named("catalog"))
			products := engine.SearchProducts(ctx, strings.Join(args, " "), filters)
			if outputJSON {
				return printJSON(catalog.Cards(products))
			}
			if len(products) == 0 {
				fmt.Println("no products found")
				return nil
			}
			for _, p := range products {
				fmt.Printf("%6d  %-60s %8.2f €  %s\n", p.ID, p.Name, p.Price, p.Species)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filters.Species, "species", "", "species filter (perro, gato...)")
	cmd.Flags().StringVar(&filters.Category, "category", "", "category filter")
	cmd.Flags().Float64Var(&filters.MaxPrice, "max-price", 0, "maximum price")
	cmd.Flags().IntVar(&filters.Limit, "limit", 5, "maximum number of products")
	return cmd
}

func newAskCmd() *cobra.Command {
	var (
		sessionID      string
		conversationID string
	)

	cmd := &cobra.Command{
		Use:   "ask <message>",
		Short: "Send one message through the full chat pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			stores, closeFn, err := openStores(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			runtime, err := bootstrap.Build(cfg, stores, bootstrap.NewGenerator(cfg, logger.Named("llm")), nil, nil, logger)
			if err != nil {
				return err
			}
			resp, err := runtime.Service.ProcessMessage(ctx, chat.Request{
				SessionID:      sessionID,
				ConversationID: conversationID,
				Message:        strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(resp)
			}
			fmt.Printf("[%s] conversation %s\n\n%s\n", resp.ResponseType, resp.ConversationID, resp.Message)
			for _, p := range resp.Products {
				fmt.Printf("  · %s (%.2f €) %s\n", p.Name, p.Price, p.ProductURL)
			}
			for _, c := range resp.Clinics {
				fmt.Printf("  · %s, %s %s\n", c.Name, c.PostalCode, c.Phone)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "miactl", "session id")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	return cmd
}

// openStores picks Postgres when a database is configured and the seed
// fixture otherwise.
func openStores(ctx context.Context) (bootstrap.Stores, func(), error) {
	if cfg.UseInMemoryStore || strings.TrimSpace(cfg.DatabaseURL) == "" {
		fixture, err := seed.Load(cfg.SeedPath)
		if err != nil {
			return bootstrap.Stores{}, nil, err
		}
		return bootstrap.MemoryStores(fixture), func() {}, nil
	}
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return bootstrap.Stores{}, nil, err
	}
	if err := db.ValidateRuntimeSchema(ctx, pool); err != nil {
		pool.Close()
		return bootstrap.Stores{}, nil, err
	}
	return bootstrap.PostgresStores(store.New(pool, logger.Named("store"))), closer(pool), nil
}

func closer(pool *pgxpool.Pool) func() {
	return func() { pool.Close() }
}
