package models

// DependencySummary counts the relationships around one class.
type DependencySummary struct {
	Dependencies   int            `json:"dependencies"`
	Dependents     int            `json:"dependents"`
	OutgoingByType map[string]int `json:"outgoingByType"`
}

// ClassAnalysis is a provider answer about a single class.
type ClassAnalysis struct {
	Answer       string            `json:"answer"`
	ClassDetails string            `json:"classDetails"`
	Dependencies DependencySummary `json:"dependencies"`
}

type ProviderStatus struct {
	Connected bool   `json:"connected"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	Message   string `json:"message"`
}
