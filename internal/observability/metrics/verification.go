package metrics

// SessionCreated records a new session.
func SessionCreated() {
	if !enabled {
		return
	}
	sessionCreateTotal.Inc()
}

// FilesUploaded records files newly admitted into a session.
func FilesUploaded(n int) {
	if !enabled || n <= 0 {
		return
	}
	filesUploadedTotal.Add(float64(n))
}

// VerificationAttempt records the outcome of one verification attempt.
func VerificationAttempt(result string) {
	if !enabled {
		return
	}
	verificationTotal.WithLabelValues(result).Inc()
}

// VerificationRetry records an expanded-source retry.
func VerificationRetry() {
	if !enabled {
		return
	}
	verificationRetry.Inc()
}

// MatchStored records a confirmed match being persisted.
func MatchStored(status string) {
	if !enabled {
		return
	}
	matchStoredTotal.WithLabelValues(status).Inc()
}

// BatchLookup records a batch address lookup.
func BatchLookup() {
	if !enabled {
		return
	}
	batchLookupTotal.Inc()
}

// SourceFetch records a missing-source fetch attempt.
func SourceFetch(status string) {
	if !enabled {
		return
	}
	fetchAttemptsTotal.WithLabelValues(status).Inc()
}
