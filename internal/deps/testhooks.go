package deps

// SetCommandOutputForTests swaps the command runner used by DetectFFmpeg and
// returns a restore function.
func SetCommandOutputForTests(fn OutputFunc) func() {
	prev := commandOutput
	if fn != nil {
		commandOutput = fn
	}
	return func() { commandOutput = prev }
}
