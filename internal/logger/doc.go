// Package logger wraps zap for the bootstrapper:
//   - a global sugared logger writing a console format to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and a WithLevel option for scoped loggers,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// Child processes own stdout while the bootstrap runs, so log lines go to
// stderr and stay separable from package manager output.
package logger
