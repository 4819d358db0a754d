package nova

import (
	"strings"
	"time"
)

// novaTimestampLayout is the format nova uses for processing timestamps.
const novaTimestampLayout = "2006-01-02 15:04:05.999999"

// SessionToken is the opaque session key returned by login.
type SessionToken string

// ArtifactType names a downloadable result file. Values are passed through to
// the service unchecked.
type ArtifactType string

// Known result files.
const (
	ArtifactWCS             ArtifactType = "wcs_file"
	ArtifactNewFITS         ArtifactType = "new_fits_file"
	ArtifactRDLS            ArtifactType = "rdls_file"
	ArtifactAXY             ArtifactType = "axy_file"
	ArtifactCorr            ArtifactType = "corr_file"
	ArtifactAnnotated       ArtifactType = "annotated_display"
	ArtifactRedGreen        ArtifactType = "red_green_image_display"
	ArtifactExtractionImage ArtifactType = "extraction_image_display"
)

// ArtifactTypes lists the known artifact types in display order.
func ArtifactTypes() []ArtifactType {
	return []ArtifactType{
		ArtifactWCS,
		ArtifactNewFITS,
		ArtifactRDLS,
		ArtifactAXY,
		ArtifactCorr,
		ArtifactAnnotated,
		ArtifactRedGreen,
		ArtifactExtractionImage,
	}
}

// ParseArtifactType matches s against the known artifact types.
func ParseArtifactType(s string) (ArtifactType, bool) {
	s = strings.TrimSpace(s)
	for _, a := range ArtifactTypes() {
		if string(a) == s {
			return a, true
		}
	}
	return "", false
}

// Extension is the usual file extension of the artifact, with the dot.
func (a ArtifactType) Extension() string {
	switch a {
	case ArtifactWCS, ArtifactNewFITS, ArtifactRDLS, ArtifactAXY, ArtifactCorr:
		return ".fits"
	case ArtifactAnnotated, ArtifactRedGreen, ArtifactExtractionImage:
		return ".png"
	default:
		return ".dat"
	}
}

// statusResponse is the envelope shared by the POST endpoints.
type statusResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ErrorMessage string `json:"errormessage"`
}

func (r statusResponse) ok() bool {
	return strings.EqualFold(r.Status, "success")
}

func (r statusResponse) detail() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	if r.Message != "" {
		return r.Message
	}
	return r.Status
}

type loginResponse struct {
	statusResponse
	Session string `json:"session"`
}

// SubmitResult mirrors the payload returned by api/upload.
type SubmitResult struct {
	Status       string `json:"status"`
	SubmissionID int64  `json:"subid"`
	Hash         string `json:"hash"`
}

// SubmissionStatus mirrors api/submissions/{id}.
type SubmissionStatus struct {
	ProcessingStarted  string    `json:"processing_started"`
	ProcessingFinished string    `json:"processing_finished"`
	Jobs               []int64   `json:"jobs"`
	JobCalibrations    [][]int64 `json:"job_calibrations"`
	UserImages         []int64   `json:"user_images"`
}

// Calibrated reports whether at least one solving attempt succeeded.
func (s SubmissionStatus) Calibrated() bool {
	return len(s.JobCalibrations) > 0
}

// ParsedStarted returns ProcessingStarted as time.Time when possible.
func (s SubmissionStatus) ParsedStarted() time.Time {
	return parseTime(s.ProcessingStarted)
}

// ParsedFinished returns ProcessingFinished as time.Time when possible.
func (s SubmissionStatus) ParsedFinished() time.Time {
	return parseTime(s.ProcessingFinished)
}

// Calibration is the astrometric solution summary of a job.
type Calibration struct {
	RA          float64 `json:"ra"`
	Dec         float64 `json:"dec"`
	Radius      float64 `json:"radius"`
	PixScale    float64 `json:"pixscale"`
	Orientation float64 `json:"orientation"`
	Parity      float64 `json:"parity"`
}

// JobInfo mirrors api/jobs/{id}/info/.
type JobInfo struct {
	Status           string       `json:"status"`
	OriginalFilename string       `json:"original_filename"`
	MachineTags      []string     `json:"machine_tags"`
	Tags             []string     `json:"tags"`
	ObjectsInField   []string     `json:"objects_in_field"`
	Calibration      *Calibration `json:"calibration"`
}

// Solved reports whether the job finished successfully.
func (j JobInfo) Solved() bool {
	return strings.EqualFold(j.Status, "success")
}

// Annotation is one labelled object found in a solved field.
type Annotation struct {
	Type   string   `json:"type"`
	Names  []string `json:"names"`
	PixelX float64  `json:"pixelx"`
	PixelY float64  `json:"pixely"`
	Radius float64  `json:"radius"`
}

// Label returns the first name of the annotation, or "".
func (a Annotation) Label() string {
	if len(a.Names) == 0 {
		return ""
	}
	return a.Names[0]
}

type annotationsResponse struct {
	Annotations []Annotation `json:"annotations"`
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" || value == "None" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation(novaTimestampLayout, value, time.UTC); err == nil {
		return t
	}
	return time.Time{}
}
