package e2e

import (
	"github.com/cucumber/godog"

	"propnest/e2e/steps/common"
	"propnest/e2e/steps/listing"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (callers, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register listing lifecycle and search steps
	listing.RegisterSteps(ctx, tc)
}
