// Package api implements the portfolio backend's HTTP surface: the
// streaming chat endpoint, the chatbot sources listing, and health
// probes, wrapped in a recovery, request ID, logging, CORS, and
// per-IP rate limiting middleware stack.
package api
