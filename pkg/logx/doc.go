// Package logx is a thin structured-logging layer over zerolog.
//
// It exists so the rest of the codebase talks to one small Logger type
// rather than to zerolog directly: sinks and levels can be swapped at
// runtime via Service.Apply without invalidating loggers already handed
// out to components.
package logx
