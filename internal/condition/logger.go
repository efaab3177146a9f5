package condition

import (
	"log/slog"

	"github.com/wildsight/wildsight-go/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("condition")
}
