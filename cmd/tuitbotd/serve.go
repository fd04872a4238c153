package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/tuitbot/tuitbot-core/internal/clock"
	"github.com/tuitbot/tuitbot-core/internal/config"
	"github.com/tuitbot/tuitbot-core/internal/llm"
	"github.com/tuitbot/tuitbot-core/internal/loops"
	"github.com/tuitbot/tuitbot-core/internal/policy"
	"github.com/tuitbot/tuitbot-core/internal/ports"
	"github.com/tuitbot/tuitbot-core/internal/safety"
	"github.com/tuitbot/tuitbot-core/internal/telemetry"
	"github.com/tuitbot/tuitbot-core/internal/tools"
	"github.com/tuitbot/tuitbot-core/internal/xapi"
)

// defaultDiscoveryCandidateCap bounds how many search results the
// discovery loop examines per query per iteration; spec.md §4.6.3 leaves the exact
// cap to the deployment, so this picks a conservative default rather than
// adding another config knob the spec never names.
const defaultDiscoveryCandidateCap = 20

// buildServeCmd wires the full daemon: config, safety/policy, the X-API
// client, the LLM generator, the four automation loops, the tool registry,
// and Prometheus telemetry, then runs everything under a clock.Supervisor
// until an OS signal arrives. Grounded on cmd/nexus/main.go's serve command
// (config load, signal-driven shutdown, cobra RunE wiring).
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the automation loops",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath(configPath))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return runServe(cmd.Context(), *cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to tuitbot.toml (defaults to $TUITBOT_CONFIG or ./tuitbot.toml)")
	return cmd
}

// accessTokenEnv is where serve reads the OAuth user-context bearer token
// from. The PKCE/refresh flow that produces it is an external collaborator
// (§1 Non-goals: "OAuth/PKCE flow, token storage"); this process only
// consumes the four values that collaborator hands it -- access token,
// scopes, refresh callback, and authenticated user id -- starting with the
// token itself.
const accessTokenEnv = "TUITBOT_ACCESS_TOKEN"

func runServe(ctx context.Context, cfg config.Config) error {
	logger := slog.Default().With("component", "cmd.serve")

	accessToken := os.Getenv(accessTokenEnv)
	if accessToken == "" {
		return fmt.Errorf("serve: %s is not set; the auth collaborator must supply a bearer token", accessTokenEnv)
	}

	metrics := telemetry.NewMetrics()
	telemetryPort := telemetry.NewPrometheusTelemetryPort(metrics)

	usage := xapi.NewUsageTracker(time.Now)
	xClient := xapi.New(accessToken,
		xapi.WithLogger(logger),
		xapi.WithUsageTracker(usage),
		xapi.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	)

	me, err := xClient.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("serve: fetch authenticated user: %w", err)
	}
	logger.Info("authenticated", "user_id", me.ID, "username", me.Username)

	generator, err := llm.New(cfg.LLM, cfg.Business.Voice)
	if err != nil {
		return fmt.Errorf("serve: build llm generator: %w", err)
	}

	quotaStore := safety.NewQuotaStore(time.Now)
	quotaStore.Configure("post_tweet", safety.Window{Name: "daily", Duration: 24 * time.Hour, Limit: cfg.Limits.MaxTweetsPerDay})
	quotaStore.Configure("reply", safety.Window{Name: "daily", Duration: 24 * time.Hour, Limit: cfg.Limits.MaxRepliesPerDay})
	quotaStore.Configure("thread", safety.Window{Name: "weekly", Duration: 7 * 24 * time.Hour, Limit: cfg.Limits.MaxThreadsPerWeek})

	authorThrottle := safety.NewAuthorThrottle(24*time.Hour, cfg.Targets.PerDayReplyCap, time.Now)
	bannedFilter := safety.NewBannedPhraseFilter(cfg.Limits.BannedPhrases)
	mentionRatio := safety.NewProductMentionTracker(24*time.Hour, time.Now)

	approvalQueue := ports.NewMemoryApprovalQueue()
	auditStore := ports.NewMemoryAuditStore()
	quotaAudit := ports.NewMemoryQuotaStore()
	discoveryStore := ports.NewMemoryDiscoveryStore()
	scheduledPosts := ports.NewMemoryScheduledPostStore()

	idempotency := policy.NewIdempotencyShield(time.Now)

	operatingMode := cfg.MCPPolicy.OperatingMode
	if cfg.ApprovalMode {
		operatingMode = policy.ComposerMode
	}

	evaluator := policy.NewEvaluator(
		bannedFilter, quotaStore, authorThrottle, mentionRatio, approvalQueue,
		policy.WithLogger(logger),
		policy.WithIdempotencyShield(idempotency),
		policy.WithMaxMentionRatio(cfg.Limits.MaxProductMentionRatio),
		policy.WithEnforceForMutations(cfg.MCPPolicy.EnforceForMutations),
		policy.WithBlockedTools(cfg.MCPPolicy.BlockedTools...),
		policy.WithApprovalRequiredTools(cfg.MCPPolicy.RequireApprovalFor...),
		policy.WithDryRunMutations(cfg.MCPPolicy.DryRunMutations),
		policy.WithMaxMutationsPerHour(cfg.MCPPolicy.MaxMutationsPerHour),
		policy.WithOperatingMode(operatingMode),
		policy.WithQuotaAudit(quotaAudit),
	)

	poster := threadPoster{client: xClient}

	tz, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		tz = time.UTC
	}

	contentSchedule := clock.Schedule{Kind: clock.KindInterval, Every: time.Duration(cfg.Intervals.ContentPostWindowSeconds) * time.Second, Timezone: tz}
	if len(cfg.Schedule.PreferredTimes) > 0 {
		contentSchedule = clock.Schedule{Kind: clock.KindSlots, Slots: cfg.Schedule.PreferredTimes, Timezone: tz}
	}
	threadSchedule := clock.Schedule{Kind: clock.KindInterval, Every: time.Duration(cfg.Intervals.ThreadIntervalSeconds) * time.Second, Timezone: tz}
	if cfg.Schedule.ThreadTime != "" {
		threadSchedule = clock.Schedule{Kind: clock.KindSlots, Slots: []string{cfg.Schedule.ThreadTime}, Timezone: tz}
	}
	discoverySchedule := clock.Schedule{Kind: clock.KindInterval, Every: time.Duration(cfg.Intervals.DiscoverySearchSeconds) * time.Second, Timezone: tz}
	mentionsSchedule := clock.Schedule{Kind: clock.KindInterval, Every: time.Duration(cfg.Intervals.MentionsCheckSeconds) * time.Second, Timezone: tz}

	contentLoop := loops.NewContentLoop(
		generator, xClient, evaluator, cfg.Business.Topics,
		time.Duration(cfg.Intervals.ContentPostWindowSeconds)*time.Second, contentSchedule, cfg.MCPPolicy.DryRunMutations,
		loops.WithContentAudit(auditStore),
		loops.WithContentTelemetry(telemetryPort),
		loops.WithContentScheduledPosts(scheduledPosts),
	)

	threadLoop := loops.NewThreadLoop(
		generator, poster, evaluator, cfg.Business.Topics,
		time.Duration(cfg.Intervals.ThreadIntervalSeconds)*time.Second, threadSchedule, cfg.MCPPolicy.DryRunMutations,
		loops.WithThreadAudit(auditStore),
		loops.WithThreadTelemetry(telemetryPort),
	)

	discoveryQueries := cfg.Business.ProductKeywords
	if len(discoveryQueries) == 0 {
		discoveryQueries = cfg.Business.Topics
	}
	discoveryLoop := loops.NewDiscoveryLoop(
		xClient, discoveryStore, authorThrottle, discoveryQueries,
		defaultDiscoveryCandidateCap, cfg.Scoring.Threshold, discoverySchedule,
		loops.WithDiscoveryAudit(auditStore),
		loops.WithDiscoveryTelemetry(telemetryPort),
		loops.WithDiscoveryWeights(loops.ScoringWeights{
			KeywordMax:     cfg.Scoring.KeywordMax,
			FollowerMax:    cfg.Scoring.FollowerMax,
			RecencyMax:     cfg.Scoring.RecencyMax,
			EngagementMax:  cfg.Scoring.EngagementMax,
			ReplyCountMax:  cfg.Scoring.ReplyCountMax,
			ContentTypeMax: cfg.Scoring.ContentTypeMax,
		}),
	)

	mentionsLoop := loops.NewMentionsLoop(
		xClient, generator, poster, evaluator, me.ID, mentionsSchedule, cfg.MCPPolicy.DryRunMutations,
		loops.WithMentionsAudit(auditStore),
		loops.WithMentionsTelemetry(telemetryPort),
		loops.WithMentionsProductKeywords(cfg.Business.ProductKeywords),
	)

	registry := buildToolRegistry(cfg, xClient, generator, evaluator, approvalQueue, threadLoop, me.ID, metrics, telemetryPort)

	supervisor := clock.NewSupervisor(
		[]clock.Loop{contentLoop, threadLoop, discoveryLoop, mentionsLoop},
		clock.WithLogger(logger),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	supervisor.Start(runCtx)
	logger.Info("tuitbotd started", "tools", len(registry.All()))

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	supervisor.Stop()
	logger.Info("tuitbotd stopped")
	return nil
}

// buildToolRegistry registers every remote tool named in §4.7's manifest,
// grounded on internal/agent/tool_registry.go's construct-then-register-all
// startup shape.
func buildToolRegistry(
	cfg config.Config,
	xClient *xapi.Client,
	generator *llm.Generator,
	evaluator *policy.Evaluator,
	approvals ports.ApprovalQueuePort,
	threadLoop *loops.ThreadLoop,
	selfUserID string,
	metrics *telemetry.Metrics,
	telemetryPort ports.TelemetryPort,
) *tools.Registry {
	env := tools.EnvelopeContext{
		WorkflowMode: cfg.MCPPolicy.OperatingMode,
		ApprovalMode: cfg.ApprovalMode,
	}

	registry := tools.NewRegistry(
		tools.WithEnvelopeContext(env),
		tools.WithMetrics(metrics),
		tools.WithTelemetryPort(telemetryPort),
	)

	registry.Register(tools.NewPostTweetTool(xClient, evaluator, env))
	registry.Register(tools.NewReplyToTweetTool(xClient, evaluator, cfg.Business.ProductKeywords, env))
	registry.Register(tools.NewPostThreadTool(threadLoop, env))
	registry.Register(tools.NewDeleteTweetTool(xClient, evaluator, env))
	registry.Register(tools.NewLikeTweetTool(xClient, evaluator, selfUserID, env))
	registry.Register(tools.NewFollowUserTool(xClient, evaluator, selfUserID, env))
	registry.Register(tools.NewSearchTweetsTool(xClient, env))
	registry.Register(tools.NewGetTweetByIDTool(xClient, env))

	registry.Register(tools.NewXGetTool(xClient, env))
	registry.Register(tools.NewXPostTool(xClient, evaluator, env))
	registry.Register(tools.NewXGetMeTool(xClient, env))

	registry.Register(tools.NewGenerateTweetTool(generator, env))
	registry.Register(tools.NewGenerateReplyTool(generator, env))
	registry.Register(tools.NewGenerateThreadTool(generator, env))
	registry.Register(tools.NewProposeAndQueueRepliesTool(generator, evaluator, cfg.Business.ProductKeywords, env))

	registry.Register(tools.NewApproveItemTool(evaluator, env))
	registry.Register(tools.NewRejectItemTool(evaluator, env))
	registry.Register(tools.NewListPendingApprovalsTool(approvals, env))

	registry.Register(tools.NewGetConfigTool(cfg, env))
	registry.Register(tools.NewGetModeTool(env))
	registry.Register(tools.NewGetPolicyStatusTool(evaluator, env))
	registry.Register(tools.NewHealthCheckTool(map[string]tools.HealthChecker{
		"llm": generator,
	}, env))

	return registry
}
