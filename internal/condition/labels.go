package condition

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/wildsight/wildsight-go/internal/errors"
)

// loadLabels reads a label list file, one label per line, skipping blanks
// and # comments.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open label file: %w", err)).
			Component("condition").
			Category(errors.CategoryFileIO).
			Context("labels_path", path).
			Build()
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(fmt.Errorf("failed to read label file: %w", err)).
			Component("condition").
			Category(errors.CategoryFileIO).
			Context("labels_path", path).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("label file %s is empty", path).
			Component("condition").
			Category(errors.CategoryFileIO).
			Build()
	}
	return labels, nil
}
