package safe

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// walkXML calls fn with the stack of enclosing element names (local names,
// outermost first) and the trimmed text of every non-empty text node.
func walkXML(r io.Reader, fn func(path []string, text string)) error {
	dec := xml.NewDecoder(r)
	var stack []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if s := strings.TrimSpace(string(t)); s != "" && len(stack) > 0 {
				fn(stack, s)
			}
		}
	}
}

func within(path []string, section string) bool {
	for _, p := range path[:len(path)-1] {
		if p == section {
			return true
		}
	}
	return false
}

func parent(path []string) string {
	if len(path) < 2 {
		return ""
	}
	return path[len(path)-2]
}

// parseManifest reads manifest.safe into m.
func parseManifest(path string, m *Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var number string
	err = walkXML(f, func(p []string, text string) {
		name := p[len(p)-1]
		switch {
		case name == "familyName" && parent(p) == "platform":
			m.Platform = text
		case name == "number" && parent(p) == "platform":
			number = text
		case name == "familyName" && parent(p) == "instrument":
			m.Instrument = text
		case name == "mode" && within(p, "instrument"):
			m.InstrumentMode = text
		case name == "startTime" && within(p, "acquisitionPeriod"):
			m.AcquisitionStart = text
		case name == "stopTime" && within(p, "acquisitionPeriod"):
			m.AcquisitionStop = text
		case name == "orbitNumber" && within(p, "orbitReference") && m.OrbitNumber == 0:
			m.OrbitNumber, _ = strconv.Atoi(text)
		case name == "pass" && within(p, "orbitReference"):
			m.PassDirection = text
		case name == "productType" && within(p, "standAloneProductInformation"):
			m.ProductType = text
		case name == "productClass" && within(p, "standAloneProductInformation"):
			m.ProductClass = text
		case name == "missionDataTakeID" && within(p, "standAloneProductInformation"):
			m.DataTakeID = text
		case name == "transmitterReceiverPolarisation":
			m.Polarizations = appendUnique(m.Polarizations, strings.ToUpper(text))
		}
	})
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if number != "" && m.Platform != "" {
		m.Platform += number
	}

	// facility and software are attributes, not text nodes
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	return readProcessingAttrs(f, m)
}

func readProcessingAttrs(r io.Reader, m *Metadata) error {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch se.Name.Local {
		case "facility":
			if v := attr(se, "name"); v != "" && m.ProcessingCenter == "" {
				m.ProcessingCenter = v
			}
		case "software":
			if v := attr(se, "version"); v != "" && m.SoftwareVersion == "" {
				m.SoftwareVersion = strings.TrimSpace(attr(se, "name") + " " + v)
			}
		case "processing":
			if v := attr(se, "name"); v != "" && m.ProcessingLevel == "" {
				m.ProcessingLevel = v
			}
		}
	}
}

func attr(se xml.StartElement, name string) string {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
