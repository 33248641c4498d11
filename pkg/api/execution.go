package api

// ExecutionDescription records what was handed to the executor at
// submission time: the container image, its arguments, and the commit
// the image was built from.
type ExecutionDescription struct {
	Image  string
	Args   []string
	Commit string
}

// ForImage returns a description carrying only an image reference.
// Used when replaying legacy created events, which recorded nothing else.
func ForImage(image string) ExecutionDescription {
	return ExecutionDescription{Image: image}
}
