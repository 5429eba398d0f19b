package irtiff

import (
	"fmt"
	"strconv"
	"strings"
)

// Names of the environmental parameters accepted by the extractor.
const (
	ParamDistance   = "distance"
	ParamHumidity   = "humidity"
	ParamEmissivity = "emissivity"
	ParamReflection = "reflection"
)

// allowedParams is the fixed allow-list, in the order flags are rendered.
var allowedParams = []string{ParamDistance, ParamHumidity, ParamEmissivity, ParamReflection}

// paramRange is the value range documented for the vendor extractor.
type paramRange struct {
	min, max float64
}

var paramRanges = map[string]paramRange{
	ParamDistance:   {min: 1, max: 25},
	ParamHumidity:   {min: 20, max: 100},
	ParamEmissivity: {min: 0.1, max: 1},
	ParamReflection: {min: -40, max: 500},
}

// ExtractionParameters maps environmental parameter names to values.
// A nil or empty map leaves every parameter at the extractor default.
//
//   - distance: distance to the target in meters;
//   - humidity: relative humidity in percent;
//   - emissivity: surface emission coefficient, 0..1;
//   - reflection: reflected ambient temperature in degrees Celsius.
type ExtractionParameters map[string]float64

// Validate fails with ErrConfiguration if any key is outside the allow-list.
func (p ExtractionParameters) Validate() error {
	for key := range p {
		if !isAllowedParam(key) {
			return fmt.Errorf("%w: unknown extraction parameter %q, allowed: %s",
				ErrConfiguration, key, strings.Join(allowedParams, ", "))
		}
	}
	return nil
}

// Args renders parameters as extractor flags, one "--key value" pair per
// present parameter, in allow-list order.
func (p ExtractionParameters) Args() []string {
	args := make([]string, 0, 2*len(p))
	for _, key := range allowedParams {
		v, ok := p[key]
		if !ok {
			continue
		}
		args = append(args, "--"+key, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return args
}

// OutOfRange returns the keys whose values are outside the range documented
// for the extractor, in allow-list order.
func (p ExtractionParameters) OutOfRange() []string {
	var keys []string
	for _, key := range allowedParams {
		v, ok := p[key]
		if !ok {
			continue
		}
		r := paramRanges[key]
		if v < r.min || v > r.max {
			keys = append(keys, key)
		}
	}
	return keys
}

// ParseParameter parses a "key=value" pair and stores it in p.
// Unknown keys are kept so that Validate can report them.
func (p ExtractionParameters) ParseParameter(s string) error {
	key, val, ok := strings.Cut(s, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	if !ok || key == "" {
		return fmt.Errorf("%w: parameter %q is not key=value", ErrConfiguration, s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return fmt.Errorf("%w: parameter %s: %w", ErrConfiguration, key, err)
	}
	p[key] = v
	return nil
}

func isAllowedParam(key string) bool {
	for _, k := range allowedParams {
		if k == key {
			return true
		}
	}
	return false
}
