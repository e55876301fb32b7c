// Package cache provides a small TTL and size bounded byte cache used to
// absorb repeated list calls against the HubSpot API.
package cache
