// Package env provides a unified method to create environment for envexec.
//
// For linux, the env creates namespace & cgroup sandbox with one private
// working directory per environment.
//
// Other platforms are not supported.
package env
