package quorum

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPaths is the number of parallel reasoning paths per step.
	DefaultPaths = 4

	// DefaultMaxSteps bounds the propose-judge-act loop.
	DefaultMaxSteps = 6

	// DefaultFanoutTimeout is the shared deadline for one fan-out round.
	DefaultFanoutTimeout = 20 * time.Second

	// DefaultResultLimit caps rendered tool results in observations, in bytes.
	DefaultResultLimit = 400
)

const defaultSystemPrompt = "You are a helpful assistant.\n" +
	"Use tools when they meaningfully reduce uncertainty or improve correctness.\n" +
	"Prefer minimal tool use; do not call tools if you can answer directly.\n" +
	"When calling a tool, make arguments valid and minimal.\n"

type agentConfig struct {
	systemPrompt       string
	paths              int
	maxSteps           int
	strategy           SelectionStrategy
	allowToolSynthesis bool
	fanoutTimeout      time.Duration
	resultLimit        int
	structured         bool

	tools       []Tool
	toolSources []ToolSource
	aliases     map[string]string

	judge     Invoker
	reflector *Reflector
	logger    *slog.Logger
}

func newAgentConfig() *agentConfig {
	return &agentConfig{
		systemPrompt:       defaultSystemPrompt,
		paths:              DefaultPaths,
		maxSteps:           DefaultMaxSteps,
		strategy:           SelectOne,
		allowToolSynthesis: true,
		fanoutTimeout:      DefaultFanoutTimeout,
		resultLimit:        DefaultResultLimit,
		structured:         true,
		aliases:            DefaultToolAliases,
		logger:             defaultLogger,
	}
}

func (c *agentConfig) clone() *agentConfig {
	out := *c
	out.tools = make([]Tool, len(c.tools))
	copy(out.tools, c.tools)
	out.toolSources = make([]ToolSource, len(c.toolSources))
	copy(out.toolSources, c.toolSources)
	out.aliases = make(map[string]string, len(c.aliases))
	for k, v := range c.aliases {
		out.aliases[k] = v
	}
	return &out
}

// Option configures an Agent.
type Option func(*agentConfig)

// WithSystemPrompt replaces the default reasoner instructions.
func WithSystemPrompt(prompt string) Option {
	return func(c *agentConfig) {
		c.systemPrompt = prompt
	}
}

// WithPaths sets the number of parallel reasoning paths per step.
func WithPaths(n int) Option {
	return func(c *agentConfig) {
		if n > 0 {
			c.paths = n
		}
	}
}

// WithMaxSteps sets the step budget for one Run.
func WithMaxSteps(n int) Option {
	return func(c *agentConfig) {
		if n > 0 {
			c.maxSteps = n
		}
	}
}

// WithSelectionStrategy chooses how the judge resolves candidates.
func WithSelectionStrategy(s SelectionStrategy) Option {
	return func(c *agentConfig) {
		c.strategy = s
	}
}

// WithAllowToolSynthesis controls whether the judge may invent a tool call not
// present among the candidates.
func WithAllowToolSynthesis(enabled bool) Option {
	return func(c *agentConfig) {
		c.allowToolSynthesis = enabled
	}
}

// WithFanoutTimeout sets the shared deadline for each fan-out round.
func WithFanoutTimeout(d time.Duration) Option {
	return func(c *agentConfig) {
		if d > 0 {
			c.fanoutTimeout = d
		}
	}
}

// WithResultLimit caps rendered tool results in observations. Zero or negative
// means unlimited.
func WithResultLimit(n int) Option {
	return func(c *agentConfig) {
		c.resultLimit = n
	}
}

// WithStructuredOutput toggles provider structured-output mode for reasoner
// and judge calls. Plain text plus JSON extraction remains the fallback.
func WithStructuredOutput(enabled bool) Option {
	return func(c *agentConfig) {
		c.structured = enabled
	}
}

// WithTools registers tools available to every Run.
func WithTools(tools ...Tool) Option {
	return func(c *agentConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithToolSources registers dynamic tool providers, resolved at Run start.
func WithToolSources(sources ...ToolSource) Option {
	return func(c *agentConfig) {
		c.toolSources = append(c.toolSources, sources...)
	}
}

// WithToolAliases replaces the alias map applied during normalization.
func WithToolAliases(aliases map[string]string) Option {
	return func(c *agentConfig) {
		c.aliases = aliases
	}
}

// WithJudge sets a separate invoker for judge calls. Without it the reasoner
// invoker judges too.
func WithJudge(inv Invoker) Option {
	return func(c *agentConfig) {
		c.judge = inv
	}
}

// WithReflector enables reflection-driven retry for tool failures.
func WithReflector(r *Reflector) Option {
	return func(c *agentConfig) {
		c.reflector = r
	}
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(c *agentConfig) {
		c.logger = logger
	}
}

// Agent runs a propose-judge-act loop: each step fans the reasoner out over
// several sampling paths, screens the proposals, asks the judge to commit to
// exactly one action, and either executes that tool or returns the final
// answer. At most one tool call executes per step regardless of how many
// candidates propose one.
type Agent struct {
	reasoner Invoker
	cfg      *agentConfig
}

// New builds an Agent around the reasoner invoker.
func New(reasoner Invoker, opts ...Option) *Agent {
	cfg := newAgentConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Agent{reasoner: reasoner, cfg: cfg}
}

// Result is the outcome of one Run.
type Result struct {
	// Answer is the committed final answer.
	Answer string

	// Justification is the judge's reasoning for the final decision.
	Justification string

	// Steps is how many loop steps ran, including the terminating one.
	Steps int

	// Observations is the full observation log, oldest first.
	Observations []string

	// RunID identifies the run in logs.
	RunID string
}

// Run executes the loop until a FINAL decision or the step budget. It returns
// an error only for setup failures and context cancellation; model and tool
// failures degrade to diagnostic final answers instead.
func (x *Agent) Run(ctx context.Context, query string) (*Result, error) {
	cfg := x.cfg.clone()
	runID := uuid.NewString()

	logger := cfg.logger.With("run_id", runID)
	ctx = ctxWithLogger(ctx, logger)

	reg, err := newToolRegistry(ctx, cfg.tools, cfg.toolSources)
	if err != nil {
		return nil, err
	}

	judgeInv := cfg.judge
	if judgeInv == nil {
		judgeInv = x.reasoner
	}

	state := &LoopState{Query: query}
	logger.Info("run started", "query", truncate(query, 200), "paths", cfg.paths, "max_steps", cfg.maxSteps, "tools", len(reg.specs()))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		state.Step++
		if state.Step > cfg.maxSteps {
			state.Step = cfg.maxSteps
			committed := bestEffortFinal(ctx, judgeInv, query, state, cfg)
			logger.Info("step budget exhausted", "steps", cfg.maxSteps)
			return resultFrom(committed, state, runID), nil
		}

		summary := state.Summary(cfg.maxSteps)
		specs := reg.specs()

		raw := fanOut(ctx, x.reasoner, cfg.structured, cfg.paths, cfg.fanoutTimeout, func(path int) Request {
			system, user := buildReasonerPrompt(cfg.systemPrompt, query, summary, specs, path)
			return Request{System: system, User: user, Schema: proposedSchema()}
		})

		candidates, rejected := screenCandidates(raw, cfg.aliases, reg)
		logger.Debug("candidates screened", "step", state.Step, "valid", len(candidates), "rejected", rejected)

		committed := judgeDecision(ctx, judgeInv, cfg.structured, query, summary, candidates, cfg.strategy, cfg.allowToolSynthesis, cfg.aliases)
		state.LastCommitted = committed
		logger.Info("action committed", "step", state.Step, "kind", committed.Kind, "tool", committed.ToolName, "justification", truncate(committed.Justification, 200))

		if committed.Kind == KindFinal {
			return resultFrom(committed, state, runID), nil
		}

		obs := x.executeTool(ctx, reg, committed, query, cfg)
		state.Observations = append(state.Observations, obs)
		logger.Debug("observation recorded", "step", state.Step, "observation", obs)
	}
}

// executeTool runs the committed tool call and renders the outcome as an
// observation. Failures never propagate as errors; the loop sees them as text
// and the next fan-out reasons about them.
func (x *Agent) executeTool(ctx context.Context, reg *toolRegistry, committed *CommittedAction, query string, cfg *agentConfig) string {
	tool, ok := reg.get(committed.ToolName)
	if !ok {
		return fmt.Sprintf("Tool error: unknown tool '%s'", committed.ToolName)
	}

	args := argsOrEmpty(committed.ToolArgs)
	if errs := ValidateArgs(args, tool.Spec()); len(errs) > 0 {
		return fmt.Sprintf("%s => invalid_args: %s args=%s", committed.ToolName, stableJSON(errs), stableJSON(args))
	}

	var result any
	var err error
	if cfg.reflector != nil {
		result, err = cfg.reflector.Execute(ctx, tool, args, query, reg.specs())
	} else {
		result, err = tool.Run(ctx, args)
	}
	if err != nil {
		return fmt.Sprintf("%s => tool_exception: %s", committed.ToolName, truncate(err.Error(), cfg.resultLimit))
	}

	return renderObservation(committed.ToolName, result, cfg.resultLimit)
}

// bestEffortFinal asks the judge for a closing answer once the step budget is
// spent. One plain-text call only; tools are off the table at this point.
func bestEffortFinal(ctx context.Context, inv Invoker, query string, state *LoopState, cfg *agentConfig) *CommittedAction {
	summary := (&LoopState{Query: query, Observations: state.Observations, Step: cfg.maxSteps}).Summary(cfg.maxSteps)
	system, user := buildBestEffortFinalPrompt(query, summary)

	fallback := &CommittedAction{
		Kind:          KindFinal,
		FinalAnswer:   "Step limit exceeded; no valid final answer could be produced.",
		Justification: "failed to parse judge output",
	}

	obj, err := invokeObject(ctx, inv, Request{System: system, User: user}, false)
	if err != nil {
		return fallback
	}
	committed, errs := ValidateCommitted(NormalizeCommitted(obj, cfg.aliases))
	if len(errs) > 0 || committed.Kind != KindFinal {
		return fallback
	}
	return committed
}

func resultFrom(committed *CommittedAction, state *LoopState, runID string) *Result {
	answer := committed.FinalAnswer
	if answer == "" {
		answer = "No final answer produced."
	}
	return &Result{
		Answer:        answer,
		Justification: committed.Justification,
		Steps:         state.Step,
		Observations:  state.Observations,
		RunID:         runID,
	}
}
