package safe

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"strings"
)

// speedOfLight in m/s, used to turn the two-way slant range time into metres.
const speedOfLight = 299792458.0

type annotation struct {
	Header struct {
		MissionID           string `xml:"missionId"`
		ProductType         string `xml:"productType"`
		Polarisation        string `xml:"polarisation"`
		Mode                string `xml:"mode"`
		StartTime           string `xml:"startTime"`
		StopTime            string `xml:"stopTime"`
		AbsoluteOrbitNumber int    `xml:"absoluteOrbitNumber"`
		MissionDataTakeID   string `xml:"missionDataTakeId"`
	} `xml:"adsHeader"`
	General struct {
		ProductInformation struct {
			Pass              string  `xml:"pass"`
			RangeSamplingRate float64 `xml:"rangeSamplingRate"`
			RadarFrequency    float64 `xml:"radarFrequency"`
		} `xml:"productInformation"`
		Downlinks []struct {
			PRF             float64 `xml:"prf"`
			TxPulseLength   float64 `xml:"downlinkValues>txPulseLength"`
			TxPulseRampRate float64 `xml:"downlinkValues>txPulseRampRate"`
		} `xml:"downlinkInformationList>downlinkInformation"`
		Orbits []struct {
			Velocity struct {
				X float64 `xml:"x"`
				Y float64 `xml:"y"`
				Z float64 `xml:"z"`
			} `xml:"velocity"`
		} `xml:"orbitList>orbit"`
	} `xml:"generalAnnotation"`
	Image struct {
		SlantRangeTime      float64 `xml:"slantRangeTime"`
		RangePixelSpacing   float64 `xml:"rangePixelSpacing"`
		AzimuthPixelSpacing float64 `xml:"azimuthPixelSpacing"`
		NumberOfLines       int     `xml:"numberOfLines"`
		NumberOfSamples     int     `xml:"numberOfSamples"`
	} `xml:"imageAnnotation>imageInformation"`
	Grid []GridPoint `xml:"geolocationGrid>geolocationGridPointList>geolocationGridPoint"`
}

// GridPoint ties an image position to a geographic coordinate.
type GridPoint struct {
	Line      float64 `xml:"line"`
	Pixel     float64 `xml:"pixel"`
	Latitude  float64 `xml:"latitude"`
	Longitude float64 `xml:"longitude"`
	Height    float64 `xml:"height"`
}

func readAnnotation(path string) (*annotation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a annotation
	if err := xml.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &a, nil
}

// merge folds the annotation of one swath/polarization into m. Header fields
// override the manifest; parameters keep the first value seen.
func (a *annotation) merge(m *Metadata) {
	h := a.Header
	setString(&m.Mission, h.MissionID)
	setString(&m.ProductType, h.ProductType)
	setString(&m.InstrumentMode, h.Mode)
	setString(&m.AcquisitionStart, h.StartTime)
	setString(&m.AcquisitionStop, h.StopTime)
	setString(&m.DataTakeID, h.MissionDataTakeID)
	if h.AbsoluteOrbitNumber != 0 {
		m.OrbitNumber = h.AbsoluteOrbitNumber
	}
	if h.Polarisation != "" {
		m.Polarizations = appendUnique(m.Polarizations, strings.ToUpper(h.Polarisation))
	}

	pi := a.General.ProductInformation
	setString(&m.PassDirection, pi.Pass)
	firstFloat(&m.RangeSamplingRate, pi.RangeSamplingRate)
	firstFloat(&m.RadarFrequency, pi.RadarFrequency)
	if len(a.General.Downlinks) > 0 {
		d := a.General.Downlinks[0]
		firstFloat(&m.PRF, d.PRF)
		firstFloat(&m.TxPulseLength, d.TxPulseLength)
		firstFloat(&m.TxPulseRampRate, d.TxPulseRampRate)
	}
	if n := len(a.General.Orbits); n > 0 {
		v := a.General.Orbits[n/2].Velocity
		firstFloat(&m.Velocity, math.Sqrt(v.X*v.X+v.Y*v.Y+v.Z*v.Z))
	}

	img := a.Image
	firstFloat(&m.SlantRangeNear, img.SlantRangeTime*speedOfLight/2)
	firstFloat(&m.PixelSpacingRange, img.RangePixelSpacing)
	firstFloat(&m.PixelSpacingAzimuth, img.AzimuthPixelSpacing)
	if m.Lines == 0 {
		m.Lines = img.NumberOfLines
	}
	if m.Samples == 0 {
		m.Samples = img.NumberOfSamples
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstFloat(dst *float64, v float64) {
	if *dst == 0 && v != 0 {
		*dst = v
	}
}
