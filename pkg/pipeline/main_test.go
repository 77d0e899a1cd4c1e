package pipeline

import (
	"os"
	"testing"

	"github.com/VigneshwaranMurugan16/ai-ehr-predictor/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test")
	os.Exit(m.Run())
}
