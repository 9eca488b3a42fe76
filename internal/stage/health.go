package stage

// Health summarizes the readiness of a dependency stage execution needs
// (the store, the Gemini client, the catalog itself).
type Health struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Check reports name as ready when err is nil and carries err's text otherwise.
func Check(name string, err error) Health {
	if err != nil {
		return Unhealthy(name, err.Error())
	}
	return Healthy(name)
}

// Require reports name as ready when ok holds; detail explains the failure.
func Require(name string, ok bool, detail string) Health {
	if !ok {
		return Unhealthy(name, detail)
	}
	return Healthy(name)
}

// AllReady reports whether every entry is ready.
func AllReady(health []Health) bool {
	for _, h := range health {
		if !h.Ready {
			return false
		}
	}
	return true
}
