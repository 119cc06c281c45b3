package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/argus-scan/argus/internal/engine"
	"github.com/argus-scan/argus/internal/types"
)

var (
	trainType          string
	trainFile          string
	trainLine          uint32
	trainDescription   string
	trainContext       string
	trainFalsePositive bool
	trainReason        string
	trainConfidence    float32
)

var trainCmd = &cobra.Command{
	Use:   "train <project-path>",
	Short: "Record a false-positive/valid-finding feedback decision into the learning loop",
	Args:  cobra.ArbitraryArgs,
	RunE:  runTrain,
}

func init() {
	trainCmd.Flags().StringVar(&trainType, "type", "", "Issue type the feedback applies to (required)")
	trainCmd.Flags().StringVar(&trainFile, "file", "", "Relative path of the finding (required)")
	trainCmd.Flags().Uint32Var(&trainLine, "line", 0, "Line number of the finding")
	trainCmd.Flags().StringVar(&trainDescription, "description", "", "Finding description, for the stored memory content")
	trainCmd.Flags().StringVar(&trainContext, "context", string(types.ContextProduction), "File context (production, test, demo, config, generated, vendored, script)")
	trainCmd.Flags().BoolVar(&trainFalsePositive, "false-positive", false, "Mark this finding as a false positive (omit to confirm it is a valid issue)")
	trainCmd.Flags().StringVar(&trainReason, "reason", "", "Why the user made this call")
	trainCmd.Flags().Float32Var(&trainConfidence, "confidence", 1.0, "User confidence in [0,1]")
	trainCmd.MarkFlagRequired("type")
	trainCmd.MarkFlagRequired("file")
}

func runTrain(cmd *cobra.Command, args []string) error {
	if _, err := requireProjectPath(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	h, err := engine.Init(cfg)
	if err != nil {
		return internalErr(err)
	}
	defer h.Shutdown()

	var line *uint32
	if trainLine > 0 {
		line = &trainLine
	}
	issue := types.Issue{
		Type:        trainType,
		File:        trainFile,
		Line:        line,
		Description: trainDescription,
		Context:     types.FileContext(trainContext),
	}
	issue.Fingerprint = fmt.Sprintf("train/%s/%s/%d", issue.Type, issue.File, trainLine)

	id, err := h.FalsePositive.RecordFeedback(cmd.Context(), issue, trainFalsePositive, trainReason, trainConfidence)
	if err != nil {
		return internalErr(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		_ = enc.Encode(map[string]interface{}{"memory_id": id, "is_false_positive": trainFalsePositive})
	} else {
		fmt.Printf("recorded feedback memory %d (false_positive=%v)\n", id, trainFalsePositive)
	}
	return nil
}
