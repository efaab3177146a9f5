package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wildsight/wildsight-go/internal/condition"
	"github.com/wildsight/wildsight-go/internal/detection"
	"github.com/wildsight/wildsight-go/internal/errors"
)

// detectionView is one aggregated detection in a response.
type detectionView struct {
	Label      string            `json:"label"`
	Confidence float64           `json:"confidence"`
	Box        [4]float64        `json:"box"`
	Enrichment map[string]string `json:"enrichment,omitempty"`
}

// detectResponse is the analysis result of one uploaded image. Nothing is
// persisted by the detect endpoints; clients submit a report explicitly.
type detectResponse struct {
	Filename        string            `json:"filename"`
	Thumbnail       string            `json:"thumbnail,omitempty"`
	Detections      []detectionView   `json:"detections"`
	Summary         detection.Summary `json:"summary"`
	Condition       condition.Result  `json:"condition"`
	ModelUsed       string            `json:"model_used"`
	CanCreateReport bool              `json:"can_create_report"`
	FramesProcessed int               `json:"frames_processed,omitempty"`
}

// handleDetect runs the full detection pipeline on one uploaded image.
// Analysis only: persistence happens through POST /reports.
func (c *Controller) handleDetect(ctx echo.Context) error {
	data, err := c.readUpload(ctx, "file")
	if err != nil {
		return c.HandleError(ctx, err, "image file is required", 0)
	}

	filename, err := c.storeUpload(ctx, data)
	if err != nil {
		return c.HandleError(ctx, err, "failed to store upload", http.StatusInternalServerError)
	}

	raw, aggregated := c.runDetection(data)
	cond := c.runCondition(data)

	return ctx.JSON(http.StatusOK, detectResponse{
		Filename:        filename,
		Detections:      toDetectionViews(aggregated),
		Summary:         detection.Summarize(raw, aggregated, c.rt.RefData),
		Condition:       cond,
		ModelUsed:       c.modelName(),
		CanCreateReport: len(aggregated) > 0,
	})
}

// handleDetectVideo aggregates detections across a set of pre-extracted
// video frames (multipart field "frames"). The session keeps only the
// single best detection and classifies condition on the first frame that
// produced any detection. The best frame is stored as the thumbnail.
func (c *Controller) handleDetectVideo(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return c.HandleError(ctx, validationErr("multipart form is required", err), "", 0)
	}
	frames := form.File["frames"]
	if len(frames) == 0 {
		frames = form.File["file"]
	}
	if len(frames) == 0 {
		return c.HandleError(ctx, validationErr("at least one frame is required", nil), "", 0)
	}

	session := detection.NewSession()
	frameData := make(map[string][]byte, len(frames))
	for i, header := range frames {
		data, err := readFileHeader(header, c.maxUploadBytes())
		if err != nil {
			return c.HandleError(ctx, err, "failed to read frame", 0)
		}
		ref := fmt.Sprintf("frame-%d", i)
		frameData[ref] = data

		raw, _ := c.runDetection(data)
		session.AddFrame(ref, raw)
	}

	best, bestFrame := session.Best()
	seen, _ := session.FrameCount()

	var aggregated []detection.Aggregated
	var raw []detection.RawDetection
	thumbnail := ""
	cond := condition.UnknownResult()

	if best != nil {
		raw = []detection.RawDetection{*best}
		aggregated = detection.Aggregate(raw, c.rt.RefData)

		if firstFrame, ok := session.FirstFrame(); ok {
			cond = c.runCondition(frameData[firstFrame])
		}
		thumbnail, err = c.storeUpload(ctx, frameData[bestFrame])
		if err != nil {
			return c.HandleError(ctx, err, "failed to store thumbnail", http.StatusInternalServerError)
		}
	}

	return ctx.JSON(http.StatusOK, detectResponse{
		Filename:        thumbnail,
		Thumbnail:       thumbnail,
		Detections:      toDetectionViews(aggregated),
		Summary:         detection.Summarize(raw, aggregated, c.rt.RefData),
		Condition:       cond,
		ModelUsed:       c.modelName(),
		CanCreateReport: best != nil,
		FramesProcessed: seen,
	})
}

// handleDetectFrame is the realtime single-frame variant. Nothing is
// written to disk: frames arrive continuously and only the analysis
// matters.
func (c *Controller) handleDetectFrame(ctx echo.Context) error {
	data, err := c.readUpload(ctx, "frame")
	if err != nil {
		if data, err = c.readUpload(ctx, "file"); err != nil {
			return c.HandleError(ctx, err, "frame image is required", 0)
		}
	}

	raw, aggregated := c.runDetection(data)
	cond := c.runCondition(data)

	return ctx.JSON(http.StatusOK, detectResponse{
		Detections:      toDetectionViews(aggregated),
		Summary:         detection.Summarize(raw, aggregated, c.rt.RefData),
		Condition:       cond,
		ModelUsed:       c.modelName(),
		CanCreateReport: len(aggregated) > 0,
	})
}

// runDetection invokes the object detector, degrading to an empty result
// when the model is unavailable or inference fails.
func (c *Controller) runDetection(imageData []byte) ([]detection.RawDetection, []detection.Aggregated) {
	if !c.rt.Detector.Loaded() {
		return nil, []detection.Aggregated{}
	}

	start := time.Now()
	raw, err := c.rt.Detector.Detector.Detect(imageData)
	c.rt.Metrics.RecordInference("detection", time.Since(start).Seconds(), err)
	if err != nil {
		c.logger.Warn("detection failed, returning empty result", "error", err)
		return nil, []detection.Aggregated{}
	}

	aggregated := detection.Aggregate(raw, c.rt.RefData)
	for i := range aggregated {
		c.rt.Metrics.RecordDetection(aggregated[i].Label)
	}
	return raw, aggregated
}

// runCondition invokes the condition classifier, degrading to Unknown.
func (c *Controller) runCondition(imageData []byte) condition.Result {
	if c.rt.Classifier == nil {
		return condition.UnknownResult()
	}
	start := time.Now()
	result := c.rt.Classifier.Classify(imageData)
	c.rt.Metrics.RecordInference("condition", time.Since(start).Seconds(), nil)
	return result
}

func (c *Controller) modelName() string {
	if c.rt.Detector.Loaded() {
		return c.rt.Detector.Detector.Name()
	}
	return "unavailable"
}

// readUpload reads one multipart file field fully into memory.
func (c *Controller) readUpload(ctx echo.Context, field string) ([]byte, error) {
	header, err := ctx.FormFile(field)
	if err != nil {
		return nil, validationErr(fmt.Sprintf("missing file field %q", field), err)
	}
	return readFileHeader(header, c.maxUploadBytes())
}

func readFileHeader(header *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && header.Size > maxBytes {
		return nil, errors.Newf("file %q exceeds the upload size limit", header.Filename).
			Component("api").
			Category(errors.CategoryValidation).
			Context("size", header.Size).
			Build()
	}

	f, err := header.Open()
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "open_upload").
			Build()
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "read_upload").
			Build()
	}
	return data, nil
}

// storeUpload writes uploaded bytes under a random filename, so concurrent
// uploads never collide.
func (c *Controller) storeUpload(ctx echo.Context, data []byte) (string, error) {
	dir := c.rt.Settings.Upload.Path
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "create_upload_dir").
			Build()
	}

	filename := uuid.NewString() + uploadExtension(ctx)
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		return "", errors.New(err).
			Component("api").
			Category(errors.CategoryFileIO).
			Context("operation", "write_upload").
			Build()
	}
	return filename, nil
}

// uploadExtension picks a stored-file extension from the original upload
// name, defaulting to .jpg.
func uploadExtension(ctx echo.Context) string {
	if header, err := ctx.FormFile("file"); err == nil {
		if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	return ".jpg"
}

func (c *Controller) maxUploadBytes() int64 {
	mb := c.rt.Settings.Upload.MaxSizeMB
	if mb <= 0 {
		return 0
	}
	return int64(mb) << 20
}

func toDetectionViews(aggregated []detection.Aggregated) []detectionView {
	views := make([]detectionView, 0, len(aggregated))
	for i := range aggregated {
		views = append(views, detectionView{
			Label:      aggregated[i].Label,
			Confidence: aggregated[i].Confidence,
			Box:        aggregated[i].Box,
			Enrichment: aggregated[i].Enrichment,
		})
	}
	return views
}

func validationErr(message string, cause error) error {
	b := errors.Newf("%s", message)
	if cause != nil {
		b = errors.New(fmt.Errorf("%s: %w", message, cause))
	}
	return b.Component("api").Category(errors.CategoryValidation).Build()
}
