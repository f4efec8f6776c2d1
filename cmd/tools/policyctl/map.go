// cmd/tools/policyctl/map.go
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"policy-extraction-workers/internal/extraction"
	"policy-extraction-workers/internal/models"

	"github.com/spf13/cobra"
)

// bagFile is the on-disk field bag. A bare {"key": "value"} object is accepted too.
type bagFile struct {
	Fields         map[string]string `json:"fields"`
	Confidence     float64           `json:"confidence"`
	RequiresReview bool              `json:"requiresReview"`
}

type mapResult struct {
	File string `json:"file"`
	extraction.Result
}

func newMapCmd(opts *globalOptions) *cobra.Command {
	var (
		files       []string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Map field bag files to policy records",
		Long:  "Runs the mapper, installment extractor and validator over each file and prints the results as JSON.",
		RunE: func(cmd *cobra.Command, args []string) error {
			files = append(files, args...)
			if len(files) == 0 {
				return errors.New("at least one field bag file is required (-f)")
			}

			rules, err := opts.loadRules()
			if err != nil {
				return fmt.Errorf("load rules: %w", err)
			}
			engine, err := extraction.NewEngine(rules, extraction.WithLogger(opts.logger()))
			if err != nil {
				return err
			}

			bags := make([]models.ExtractedFieldBag, 0, len(files))
			for _, f := range files {
				bag, err := readBagFile(f)
				if err != nil {
					return err
				}
				bags = append(bags, bag)
			}

			results, err := engine.ProcessBatch(cmd.Context(), bags, concurrency)
			if err != nil {
				return err
			}

			out := make([]mapResult, len(results))
			for i, r := range results {
				out[i] = mapResult{File: files[i], Result: r}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Field bag JSON file (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum bags processed at once (0 = unbounded)")
	return cmd
}

func readBagFile(path string) (models.ExtractedFieldBag, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.ExtractedFieldBag{}, err
	}

	var bf bagFile
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&bf); err == nil && bf.Fields != nil {
		return models.NewFieldBag(bf.Fields, bf.Confidence, bf.RequiresReview), nil
	}

	var bare map[string]string
	if err := json.Unmarshal(data, &bare); err != nil {
		return models.ExtractedFieldBag{}, fmt.Errorf("%s: not a field bag: %w", path, err)
	}
	return models.NewFieldBag(bare, 0, false), nil
}
