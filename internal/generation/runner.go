package generation

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/insightdeck/insightdeck/internal/ai"
	"github.com/insightdeck/insightdeck/internal/apperr"
)

const defaultTaskTimeout = 60 * time.Second

// Runner executes one generation task: build the instruction, call the
// completion endpoint under a per-call timeout, parse the output. It has
// no side effects beyond the outbound call.
type Runner struct {
	provider ai.Provider
	timeout  time.Duration
	log      *logrus.Entry
}

func NewRunner(provider ai.Provider, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	return &Runner{
		provider: provider,
		timeout:  timeout,
		log:      logrus.WithField("component", "generation"),
	}
}

func (r *Runner) Provider() ai.Provider { return r.provider }

// complete issues one system+user completion with the runner's timeout.
func (r *Runner) complete(ctx context.Context, task, system, user string, params ai.Params) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	out, err := r.chat(ctx, []ai.Message{
		ai.SystemMessage(system),
		ai.UserMessage(user),
	}, params)
	entry := r.log.WithFields(logrus.Fields{"task": task, "elapsed": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Warn("completion failed")
		return "", err
	}
	entry.Debug("completion ok")
	return out, nil
}

// chat enforces the deadline even against a provider that never checks
// its context: the call is abandoned at the deadline and the stray
// goroutine is left to drain in the background. Without this a hanging
// provider would stall the orchestrator's join and turn concurrent task
// latency into a sum.
func (r *Runner) chat(ctx context.Context, msgs []ai.Message, params ai.Params) (string, error) {
	type completion struct {
		out string
		err error
	}
	done := make(chan completion, 1)
	go func() {
		out, err := r.provider.Chat(ctx, msgs, params)
		done <- completion{out: out, err: err}
	}()
	select {
	case c := <-done:
		return c.out, c.err
	case <-ctx.Done():
		return "", apperr.UpstreamTransient("completion call timed out", ctx.Err())
	}
}

type ChartRequest struct {
	Prompt         string
	NumberOfCharts int
	ChartTypes     []string
	KnowledgeCtx   string
	Persona        string
	Context        map[string]any
}

func (r *Runner) Charts(ctx context.Context, req ChartRequest) (ChartResult, error) {
	out, err := r.complete(ctx, "charts",
		chartSystemPrompt(req.NumberOfCharts, req.ChartTypes, req.KnowledgeCtx, req.Persona),
		chartUserPrompt(req.Prompt, req.Context),
		ai.Params{MaxTokens: 4000, Temperature: 0.7})
	if err != nil {
		return ChartResult{}, err
	}
	return ParseChartResult(out)
}

func (r *Runner) SingleChart(ctx context.Context, prompt, kbContext, persona string) (ChartConfig, error) {
	out, err := r.complete(ctx, "chart",
		chartSystemPrompt(1, []string{"bar"}, kbContext, persona),
		prompt,
		ai.Params{MaxTokens: 2000, Temperature: 0.7})
	if err != nil {
		return nil, err
	}
	return ParseSingleChart(out)
}

func (r *Runner) Insights(ctx context.Context, prompt string, chartData any, kbContext, persona string) (InsightResult, error) {
	out, err := r.complete(ctx, "insights",
		insightSystemPrompt(kbContext, persona),
		insightUserPrompt(prompt, chartData),
		ai.Params{MaxTokens: 2000, Temperature: 0.6})
	if err != nil {
		return InsightResult{}, err
	}
	return ParseInsightResult(out)
}

func (r *Runner) Policies(ctx context.Context, region, category, dataContext string) (PolicyResult, error) {
	user := "Summarize current and emerging policies."
	if dataContext != "" {
		user += "\nData context: " + dataContext
	}
	out, err := r.complete(ctx, "policies",
		policySystemPrompt(region, category),
		user,
		ai.Params{MaxTokens: 2500, Temperature: 0.4})
	if err != nil {
		return PolicyResult{}, err
	}
	return ParsePolicyResult(out)
}

func (r *Runner) Report(ctx context.Context, prompt string, charts []ChartConfig, insights InsightResult, persona string) (ReportResult, error) {
	out, err := r.complete(ctx, "report",
		reportSystemPrompt(persona),
		reportUserPrompt(prompt, charts, insights),
		ai.Params{MaxTokens: 4000, Temperature: 0.6})
	if err != nil {
		return ReportResult{}, err
	}
	return ParseReportResult(out)
}

func (r *Runner) Customize(ctx context.Context, prompt string, current ChartConfig) (ChartConfig, error) {
	out, err := r.complete(ctx, "customize",
		customizeSystemPrompt(current),
		prompt,
		ai.Params{MaxTokens: 2000, Temperature: 0.3})
	if err != nil {
		return nil, err
	}
	return ParseSingleChart(out)
}

func (r *Runner) FreeText(ctx context.Context, prompt, kbContext string) (string, error) {
	return r.complete(ctx, "freetext", freeTextSystemPrompt(kbContext), prompt,
		ai.Params{MaxTokens: 2000, Temperature: 0.7})
}

// AskStream streams an answer to a follow-up question about generated
// dashboard content. The provider must support streaming; ctx cancels
// the upstream mid-stream when the client disconnects.
func (r *Runner) AskStream(ctx context.Context, question, generationResult, kbContext string) (<-chan string, <-chan error, error) {
	sp, ok := r.provider.(ai.StreamProvider)
	if !ok {
		return nil, nil, apperr.UpstreamConfig("configured provider does not support streaming")
	}
	chunks, errs := sp.StreamChat(ctx, []ai.Message{
		ai.SystemMessage(askSystemPrompt(generationResult, kbContext)),
		ai.UserMessage(question),
	}, ai.Params{MaxTokens: 2000, Temperature: 0.7})
	return chunks, errs, nil
}

// Turn runs one conversational turn over prior history.
func (r *Runner) Turn(ctx context.Context, history []ai.Message, message string) (ChatTurn, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msgs := make([]ai.Message, 0, len(history)+2)
	msgs = append(msgs, ai.SystemMessage(chatSystemPrompt))
	msgs = append(msgs, history...)
	msgs = append(msgs, ai.UserMessage(message))

	out, err := r.chat(ctx, msgs, ai.Params{MaxTokens: 1500, Temperature: 0.7})
	if err != nil {
		return ChatTurn{}, err
	}
	return ParseChatTurn(out), nil
}
