package safe

import (
	"strconv"
	"strings"
	"time"

	"github.com/stevecastle/sarview/platform"
)

// Metadata is what the manifest and annotation files say about a product.
type Metadata struct {
	Instrument       string
	Platform         string
	Mission          string
	AcquisitionStart string
	AcquisitionStop  string
	OrbitNumber      int
	Polarizations    []string
	ProductType      string
	ProductClass     string
	Lines            int
	Samples          int

	RangeSamplingRate float64
	RadarFrequency    float64
	PRF               float64
	TxPulseLength     float64
	TxPulseRampRate   float64
	Velocity          float64
	SlantRangeNear    float64

	PixelSpacingRange   float64
	PixelSpacingAzimuth float64

	InstrumentMode   string
	PassDirection    string
	DataTakeID       string
	ProcessingLevel  string
	ProcessingCenter string
	SoftwareVersion  string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Fields renders the metadata as the upper-case key/value pairs written into
// image tags and sidecars. label describes the polarization content of the
// output; when empty the product's polarizations are listed. Zero-valued
// optional parameters are omitted.
func (m Metadata) Fields(label string, now time.Time) map[string]string {
	platformName := m.Platform
	if m.Mission != "" {
		platformName = m.Mission
	}
	if label == "" {
		label = strings.Join(m.Polarizations, ",")
	}
	f := map[string]string{
		"INSTRUMENT":           m.Instrument,
		"PLATFORM":             platformName,
		"ACQUISITION_START":    m.AcquisitionStart,
		"ACQUISITION_STOP":     m.AcquisitionStop,
		"ORBIT_NUMBER":         strconv.Itoa(m.OrbitNumber),
		"POLARIZATIONS":        label,
		"PRODUCT_TYPE":         m.ProductType,
		"CONVERSION_TOOL":      platform.AppName,
		"CONVERSION_VERSION":   platform.Version,
		"CONVERSION_TIMESTAMP": now.UTC().Format(time.RFC3339),
	}
	numbers := map[string]float64{
		"RANGE_SAMPLING_RATE":   m.RangeSamplingRate,
		"RADAR_FREQUENCY":       m.RadarFrequency,
		"PRF":                   m.PRF,
		"TX_PULSE_LENGTH":       m.TxPulseLength,
		"TX_PULSE_RAMP_RATE":    m.TxPulseRampRate,
		"VELOCITY":              m.Velocity,
		"SLANT_RANGE_NEAR":      m.SlantRangeNear,
		"PIXEL_SPACING_RANGE":   m.PixelSpacingRange,
		"PIXEL_SPACING_AZIMUTH": m.PixelSpacingAzimuth,
	}
	for k, v := range numbers {
		if v != 0 {
			f[k] = formatFloat(v)
		}
	}
	texts := map[string]string{
		"INSTRUMENT_MODE":   m.InstrumentMode,
		"PASS_DIRECTION":    m.PassDirection,
		"DATA_TAKE_ID":      m.DataTakeID,
		"PROCESSING_LEVEL":  m.ProcessingLevel,
		"PROCESSING_CENTER": m.ProcessingCenter,
		"SOFTWARE_VERSION":  m.SoftwareVersion,
	}
	for k, v := range texts {
		if v != "" {
			f[k] = v
		}
	}
	return f
}
