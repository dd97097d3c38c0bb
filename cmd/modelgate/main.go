package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zen-systems/modelgate/pkg/adapter"
	"github.com/zen-systems/modelgate/pkg/config"
	"github.com/zen-systems/modelgate/pkg/logging"
	"github.com/zen-systems/modelgate/pkg/router"
	"github.com/zen-systems/modelgate/pkg/runtime"
	"github.com/zen-systems/modelgate/pkg/signal"
)

// version is stamped via -ldflags at release time.
var version = "dev"

var (
	configFile string
	logLevel   string
	jsonOut    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "modelgate",
		Short: "Hybrid model selection for local LLM backends",
		Long: `Modelgate picks the right local model for each request. A lexical
	heuristic scores the text first; when its confidence falls below the
	configured threshold the request escalates to a small router model,
	and if that fails the default model takes over. A runtime registry
	keeps at most one model resident at a time.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print machine-readable JSON")

	rootCmd.AddCommand(selectCmd())
	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select [prompt]",
		Short: "Pick a model for a prompt without calling it",
		Long: `Runs the full selection pipeline and prints the decision.
	Prefix the prompt with @model (or an alias like @fast) to force a model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			selector, err := buildSelector(cfg, log)
			if err != nil {
				return err
			}

			decision := selector.Select(context.Background(), args[0])
			if jsonOut {
				return printJSON(decision)
			}

			fmt.Printf("model:      %s\n", decision.Model)
			fmt.Printf("confidence: %.2f\n", decision.Confidence)
			fmt.Printf("source:     %s\n", decision.Source)
			if len(decision.Signals) > 0 {
				fmt.Printf("signals:    %s\n", joinSignals(decision.Signals))
			}
			fmt.Printf("rationale:  %s\n", decision.Rationale)
			return nil
		},
	}
}

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain [prompt]",
		Short: "Trace the selection pipeline without recording the decision",
		Long: `Runs the identical pipeline as select as a dry run and prints the
	per-layer trace: heuristic scores, fired signals and their weights,
	the gate verdict, and the escalation outcome. Nothing is added to
	history or statistics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			selector, err := buildSelector(cfg, log)
			if err != nil {
				return err
			}

			explanation := selector.Explain(context.Background(), args[0])
			if jsonOut {
				return printJSON(explanation)
			}

			fmt.Printf("text:       %s\n", explanation.Text)
			fmt.Printf("signals:    %s\n", describeSignals(explanation.Signals, explanation.Weights))

			fmt.Println("scores:")
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			for _, model := range explanation.Scores.Ranked() {
				fmt.Fprintf(w, "  %s\t%.2f\n", model, explanation.Scores[model])
			}
			w.Flush()

			verdict := "escalate"
			if explanation.Accepted {
				verdict = "accept"
			}
			fmt.Printf("confidence: %.2f vs threshold %.2f (%s)\n", explanation.Confidence, explanation.Threshold, verdict)

			if trace := explanation.Escalation; trace != nil {
				if trace.Succeeded {
					fmt.Println("escalation: succeeded")
				} else {
					fmt.Printf("escalation: failed (%s)\n", trace.Error)
				}
			}

			fmt.Printf("decision:   %s (source %s, confidence %.2f)\n",
				explanation.Decision.Model, explanation.Decision.Source, explanation.Decision.Confidence)
			fmt.Printf("rationale:  %s\n", explanation.Decision.Rationale)
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	var modelFlag string

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Select a model, load it, and send the prompt to it",
		Long: `Runs selection, makes the chosen model the single resident one,
	and prints its reply. Use --model to skip selection and force a
	specific candidate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := args[0]
			ctx := context.Background()

			cfg, log, err := setup()
			if err != nil {
				return err
			}

			model := ""
			if modelFlag != "" {
				resolved, ok := cfg.ResolveModel(modelFlag)
				if !ok {
					return fmt.Errorf("model %q is not a candidate (known: %s)", modelFlag, strings.Join(cfg.CandidateNames(), ", "))
				}
				model = resolved
				fmt.Fprintf(os.Stderr, "Using %s (forced)\n", model)
			} else {
				selector, err := buildSelector(cfg, log)
				if err != nil {
					return err
				}
				decision := selector.Select(ctx, prompt)
				model = decision.Model
				fmt.Fprintf(os.Stderr, "Routing to %s (source %s, confidence %.2f)\n",
					decision.Model, decision.Source, decision.Confidence)
			}

			manager, err := buildManager(cfg, log)
			if err != nil {
				return err
			}

			a, err := manager.Load(ctx, model)
			if err != nil {
				return err
			}

			reply, err := a.Generate(ctx, prompt, nil)
			if err != nil {
				return err
			}

			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "force a candidate model, skipping selection")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List candidate models, aliases, and signal weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if jsonOut {
				return printJSON(newModelsView(cfg))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tBACKEND\tALIASES\tDESCRIPTION")
			for _, p := range cfg.CandidateModels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, backendLabel(p.Backend), strings.Join(p.Aliases, ", "), p.Description)
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "DEFAULT\t%s\n", cfg.DefaultModel)
			if cfg.Router.Name != "" {
				fmt.Fprintf(w, "ROUTER\t%s (%s)\n", cfg.Router.Name, backendLabel(cfg.Router.Backend))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SIGNAL\tWEIGHT")
			for _, sig := range signal.All() {
				if weight, ok := cfg.SignalWeights[sig]; ok {
					fmt.Fprintf(w, "%s\t%.2f\n", sig, weight)
				}
			}
			return w.Flush()
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the model registry and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}

			manager := runtime.NewManager(runtime.WithLogger(logging.Component(log, "runtime")))
			var probe *adapter.OllamaAdapter
			for _, p := range cfg.CandidateModels {
				a, err := buildAdapter(p.Name, p.Backend, p.BackendModel, cfg)
				if err != nil {
					return err
				}
				if oa, ok := a.(*adapter.OllamaAdapter); ok && probe == nil {
					probe = oa
				}
				if err := manager.Register(p.Name, a); err != nil {
					return err
				}
			}

			if jsonOut {
				return printJSON(manager.Entries())
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODEL\tBACKEND\tSTATUS\tLOADS\tLAST LOADED")
			for _, e := range manager.Entries() {
				lastLoaded := "-"
				if !e.LastLoadedAt.IsZero() {
					lastLoaded = e.LastLoadedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", e.Name, e.Backend, e.Status, e.LoadCount, lastLoaded)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if probe != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := probe.CheckRunning(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "ollama: %v\n", err)
				} else {
					fmt.Fprintf(os.Stderr, "ollama: reachable at %s\n", cfg.Backends.OllamaURL)
				}
			}
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config.yaml]",
		Short: "Validate a configuration file",
		Long:  "Loads and validates the given config file, or the active configuration when no file is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.Config
			var err error
			if len(args) == 1 {
				cfg, err = config.LoadFile(args[0])
				if err == nil {
					err = cfg.Validate()
				}
			} else {
				cfg, err = loadConfig()
			}
			if err != nil {
				return err
			}

			fmt.Println("Configuration is valid.")
			fmt.Printf("  candidates: %s\n", strings.Join(cfg.CandidateNames(), ", "))
			fmt.Printf("  default:    %s\n", cfg.DefaultModel)
			if cfg.Router.Name != "" {
				fmt.Printf("  router:     %s\n", cfg.Router.Name)
			}
			fmt.Printf("  threshold:  %.2f\n", cfg.ConfidenceThreshold)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the modelgate version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("modelgate %s\n", version)
		},
	}
}

// setup loads the active configuration and builds the process logger.
func setup() (*config.Config, zerolog.Logger, error) {
	log := logging.New(logLevel)
	cfg, err := loadConfig()
	if err != nil {
		return nil, log, err
	}
	return cfg, log, nil
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildSelector wires the selection pipeline. The meta-router is attached
// only when escalation is enabled and a router model is configured.
func buildSelector(cfg *config.Config, log zerolog.Logger) (*router.Selector, error) {
	opts := []router.SelectorOption{
		router.WithSelectorLogger(logging.Component(log, "selector")),
	}

	if cfg.EnableEscalation && cfg.Router.Name != "" {
		routerAdapter, err := buildAdapter(cfg.Router.Name, cfg.Router.Backend, cfg.Router.BackendModel, cfg)
		if err != nil {
			return nil, fmt.Errorf("router model: %w", err)
		}
		meta, err := router.NewMetaRouter(routerAdapter, cfg, router.WithMetaLogger(logging.Component(log, "meta")))
		if err != nil {
			return nil, err
		}
		opts = append(opts, router.WithMetaRouter(meta))
	}

	return router.NewSelector(cfg, opts...), nil
}

// buildManager registers an adapter for every candidate model.
func buildManager(cfg *config.Config, log zerolog.Logger) (*runtime.Manager, error) {
	manager := runtime.NewManager(runtime.WithLogger(logging.Component(log, "runtime")))
	for _, p := range cfg.CandidateModels {
		a, err := buildAdapter(p.Name, p.Backend, p.BackendModel, cfg)
		if err != nil {
			return nil, err
		}
		if err := manager.Register(p.Name, a); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// buildAdapter constructs the backend adapter for one model. An empty
// backend defaults to ollama.
func buildAdapter(name, backend, backendModel string, cfg *config.Config) (adapter.Adapter, error) {
	model := backendModel
	if model == "" {
		model = name
	}

	switch backend {
	case "", "ollama":
		return adapter.NewOllamaAdapter(model, cfg.Backends.OllamaURL)
	case "local":
		return adapter.NewLocalAIAdapter(model, cfg.Backends.LocalURL)
	case "anthropic":
		if cfg.Backends.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("model %q requires ANTHROPIC_API_KEY", name)
		}
		return adapter.NewAnthropicAdapter(cfg.Backends.AnthropicAPIKey, model)
	case "gemini":
		if cfg.Backends.GoogleAPIKey == "" {
			return nil, fmt.Errorf("model %q requires GOOGLE_API_KEY", name)
		}
		return adapter.NewGeminiAdapter(cfg.Backends.GoogleAPIKey, model)
	case "mock":
		return adapter.NewMockAdapter(name), nil
	default:
		return nil, fmt.Errorf("model %q uses unknown backend %q", name, backend)
	}
}

// modelsView is the JSON shape of the models listing.
type modelsView struct {
	Candidates   []candidateView           `json:"candidates"`
	DefaultModel string                    `json:"default_model"`
	RouterModel  string                    `json:"router_model,omitempty"`
	Weights      map[signal.Signal]float64 `json:"signal_weights"`
}

type candidateView struct {
	Name        string   `json:"name"`
	Backend     string   `json:"backend"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description,omitempty"`
}

func newModelsView(cfg *config.Config) modelsView {
	view := modelsView{
		DefaultModel: cfg.DefaultModel,
		RouterModel:  cfg.Router.Name,
		Weights:      cfg.SignalWeights,
	}
	for _, p := range cfg.CandidateModels {
		view.Candidates = append(view.Candidates, candidateView{
			Name:        p.Name,
			Backend:     backendLabel(p.Backend),
			Aliases:     p.Aliases,
			Description: p.Description,
		})
	}
	return view
}

func backendLabel(backend string) string {
	if backend == "" {
		return "ollama"
	}
	return backend
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func joinSignals(signals []signal.Signal) string {
	parts := make([]string, len(signals))
	for i, sig := range signals {
		parts[i] = string(sig)
	}
	return strings.Join(parts, ", ")
}

func describeSignals(signals []signal.Signal, weights map[signal.Signal]float64) string {
	if len(signals) == 0 {
		return "none"
	}
	parts := make([]string, len(signals))
	for i, sig := range signals {
		parts[i] = fmt.Sprintf("%s (%.2f)", sig, weights[sig])
	}
	return strings.Join(parts, ", ")
}
