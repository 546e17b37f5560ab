package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/nytrohq/interview-screener/internal/evaluation"
	"github.com/nytrohq/interview-screener/internal/interview"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive screening interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-crm", false, "do not push the evaluation to the crm")
}

// run drives a full interview session on the terminal.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	appCtx, err := bootstrap(ctx)
	if err != nil {
		log.Fatalf("starting the %s: %v", app, err)
	}

	logger := appCtx.logger
	logger.Info("starting the interview-screener", zap.String("version", version))

	reply, err := appCtx.interviews.StartSession(ctx)
	if err != nil {
		logger.Fatal("starting a session", zap.Error(err))
	}

	sessionID := reply.SessionID
	fmt.Printf("\n%s\n", reply.Message)

	for !reply.IsComplete {
		answer, promptErr := askAnswer()
		if promptErr != nil {
			logger.Fatal("reading answer", zap.Error(promptErr))
		}

		next, submitErr := appCtx.interviews.SubmitAnswer(ctx, sessionID, answer)
		if submitErr != nil {
			if ve, ok := interview.AsValidation(submitErr); ok {
				fmt.Printf("\nPlease provide an answer to continue.\n\n%s\n", ve.Reprompt)
				continue
			}
			logger.Fatal("submitting answer", zap.Error(submitErr))
		}

		reply = next
		fmt.Printf("\n%s\n", reply.Message)
	}

	result, err := appCtx.evaluations.Result(ctx, sessionID)
	if err != nil {
		logger.Fatal("loading evaluation", zap.Error(err))
	}

	printEvaluation(ctx, result, appCtx)

	if appCtx.crm != nil && cmd.Flag("no-crm").Value.String() == "false" {
		if err := appCtx.crm.SyncEvaluation(result); err != nil {
			// CRM failures are reported but never block the flow.
			logger.Warn("crm sync failed", zap.Error(err))
		}
	}
}

func askAnswer() (string, error) {
	prompt := promptui.Prompt{
		Label: "Your answer",
	}

	answer, err := prompt.Run()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(answer), nil
}

func printEvaluation(ctx context.Context, result *evaluation.Result, appCtx *appContext) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 60))
	fmt.Printf("EVALUATION: %s\n", result.Profile.Name)
	fmt.Printf("%s\n", strings.Repeat("=", 60))
	fmt.Printf("Composite score: %.1f/5.0\n", result.Composite)
	fmt.Printf("Recommendation: %s\n\n", result.Tier.Label)

	for _, score := range result.Scores {
		flag := ""
		if score.LowConfidence {
			flag = " (low confidence)"
		}
		fmt.Printf("  %s: %d/5%s\n", score.SkillName, score.Rating, flag)
	}

	guidePrompt := promptui.Select{
		Label: "Show the follow-up interview guide?",
		Items: []string{PromptYes, PromptNo},
	}

	if _, choice, err := guidePrompt.Run(); err != nil || choice != PromptYes {
		if err != nil && !errors.Is(err, promptui.ErrInterrupt) {
			appCtx.logger.Debug("guide prompt failed", zap.Error(err))
		}
		return
	}

	guide, err := appCtx.guides.Guide(ctx, result.SessionID)
	if err != nil {
		appCtx.logger.Warn("generating follow-up guide", zap.Error(err))
		return
	}

	fmt.Printf("\n%s\n", guide.Render())
}
