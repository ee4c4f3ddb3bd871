// Package api serves the read surface of the proxy pool.
//
// All payloads share the envelope {success, ...}; failures are
// {success:false, error} with a 4xx/5xx status. The proxy listing caps
// its limit at 20 and reports the derived success_rate and quality_score
// alongside each row.
package api
