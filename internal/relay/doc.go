// Package relay contains the stage handlers that move a job from an
// incoming chat link to delivered audio: metadata extraction, audio
// download, tag embedding, and chat delivery.
//
// Each handler implements stage.Handler and owns one status transition.
// The workflow manager drives them in order and persists job state
// between stages, so handlers only mutate the job they are given.
package relay
