package serializer

// An Envelope is the uniform response format of the API.
type Envelope struct {
	Success      bool   `json:"success"`
	ResultObject any    `json:"resultObject"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Success wraps the given render.
func Success(render any) Envelope {
	return Envelope{
		Success:      true,
		ResultObject: render,
	}
}

// Failure wraps the given error message.
func Failure(message string) Envelope {
	return Envelope{
		ErrorMessage: message,
	}
}
