package ratelimit

import "strconv"

const (
	HeaderLimit      = "RateLimit-Limit"
	HeaderRemaining  = "RateLimit-Remaining"
	HeaderReset      = "RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Decide turns a verdict into headers and an allow/block decision.
//
// The representative window, which feeds the aggregate RateLimit-* headers, is
// the one with the least effective remaining capacity; ties go to the longer
// window. Effective remaining accounts for the unit this request consumes.
func Decide(v *Verdict, b Boundaries, hideHeaders bool) Decision {
	d := Decision{
		Allow:          true,
		Representative: NoWindow,
	}
	if v == nil {
		return d
	}

	blocked := v.Blocked()
	headers := make(map[string]string)

	var repLimit, repRemaining int32
	for _, w := range Windows {
		usage, ok := v.Usages[w]
		if !ok {
			continue
		}

		remaining := usage.Remaining
		if !blocked || v.Blocking == w {
			remaining--
		}
		remaining = max(0, remaining)

		if d.Representative == NoWindow ||
			remaining < repRemaining ||
			(remaining == repRemaining && w.Seconds() > d.Representative.Seconds()) {
			d.Representative = w
			repLimit = usage.Limit
			repRemaining = remaining
			d.Reset = b.Reset(w)
		}

		if !hideHeaders {
			headers[w.LimitHeader()] = strconv.FormatInt(int64(usage.Limit), 10)
			headers[w.RemainingHeader()] = strconv.FormatInt(int64(remaining), 10)
		}
	}

	if !hideHeaders && d.Representative != NoWindow {
		headers[HeaderLimit] = strconv.FormatInt(int64(repLimit), 10)
		headers[HeaderRemaining] = strconv.FormatInt(int64(repRemaining), 10)
		headers[HeaderReset] = strconv.FormatInt(d.Reset, 10)
	}

	if blocked {
		d.Allow = false
		headers[HeaderRetryAfter] = strconv.FormatInt(d.Reset, 10)
	}

	d.Headers = headers
	return d
}
