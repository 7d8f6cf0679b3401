package authenticator

import (
	"github.com/chinmina/chinmina-git-credential/internal/secret"
)

// Source records where a returned credential came from.
type Source string

const (
	SourceNone        Source = ""
	SourceMemory      Source = "memory"
	SourceDurable     Source = "durable"
	SourceToken       Source = "token"
	SourceInteractive Source = "interactive"
)

// Result is the outcome of an acquisition: either a credential with its
// source, or the error that ended the pipeline.
type Result struct {
	credential secret.Credential
	source     Source
	err        error
}

func succeeded(c secret.Credential, source Source) Result {
	return Result{credential: c, source: source}
}

func failed(err error) Result {
	return Result{err: err}
}

// Credential returns the acquired credential, if the acquisition succeeded.
func (r Result) Credential() (secret.Credential, bool) {
	if r.err != nil {
		return secret.Credential{}, false
	}
	return r.credential, true
}

// Failed reports whether the acquisition ended without a credential.
func (r Result) Failed() bool {
	return r.err != nil
}

// Err returns the error that ended the pipeline, or nil on success.
func (r Result) Err() error {
	return r.err
}

func (r Result) Source() Source {
	return r.source
}
