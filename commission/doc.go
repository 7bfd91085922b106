// Package commission prices referral sales. It holds the tier table, tier
// resolution, the tier and custom-rate split calculators, upgrade and
// milestone detection, and refund reversal math. Nothing here does I/O.
package commission
