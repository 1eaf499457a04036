package entity

// Classification is the externally assigned user class of a caller
type Classification string

const (
	ClassificationUnknown    Classification = ""
	ClassificationCitizen    Classification = "citizen"
	ClassificationPrivileged Classification = "government_official"
)

func (c Classification) IsPrivileged() bool {
	return c == ClassificationPrivileged
}
