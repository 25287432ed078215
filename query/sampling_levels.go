package query

import "hermannm.dev/enumnames"

type SamplingLevel int8

const (
	SamplingDefault SamplingLevel = iota + 1
	SamplingFaster
	SamplingHigherPrecision
)

var samplingLevelNames = enumnames.NewMap(map[SamplingLevel]string{
	SamplingDefault:         "DEFAULT",
	SamplingFaster:          "FASTER",
	SamplingHigherPrecision: "HIGHER_PRECISION",
})

func ParseSamplingLevel(name string) (SamplingLevel, bool) {
	return samplingLevelNames.EnumValueFromName(name)
}

func (level SamplingLevel) IsValid() bool {
	return samplingLevelNames.ContainsEnumValue(level)
}

func (level SamplingLevel) String() string {
	return samplingLevelNames.GetNameOrFallback(level, "INVALID_SAMPLING_LEVEL")
}

func (level SamplingLevel) MarshalJSON() ([]byte, error) {
	return samplingLevelNames.MarshalToNameJSON(level)
}

func (level *SamplingLevel) UnmarshalJSON(bytes []byte) error {
	return samplingLevelNames.UnmarshalFromNameJSON(bytes, level)
}
