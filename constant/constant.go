package constant

// Set at build time with -ldflags "-X".
var (
	Version     = "dev"
	CompileTime = "unknown"
)
