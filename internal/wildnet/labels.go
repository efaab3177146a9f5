package wildnet

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wildsight/wildsight-go/internal/errors"
	"github.com/wildsight/wildsight-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("wildnet")
}

// loadLabels reads the detection label list, one label per line.
func loadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("wildnet: failed to open label file: %w", err)).
			Component("wildnet").
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
		return nil, errors.New(fmt.Errorf("wildnet: failed to read label file: %w", err)).
			Component("wildnet").
			Category(errors.CategoryFileIO).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.Newf("wildnet: label file %s is empty", path).
			Component("wildnet").
			Category(errors.CategoryFileIO).
			Build()
	}
	return labels, nil
}

// modelName derives a short model identifier from its file name.
func modelName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
