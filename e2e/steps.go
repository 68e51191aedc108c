package e2e

import (
	"github.com/cucumber/godog"

	"alumnus/e2e/steps/common"
	"alumnus/e2e/steps/onboarding"
	"alumnus/e2e/steps/ratelimit"
	"alumnus/e2e/steps/session"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background, sign-in and generic assertions
	common.RegisterSteps(ctx, tc)

	// Discovery, profile creation and parental consent
	onboarding.RegisterSteps(ctx, tc)

	// Active profile switching and refresh
	session.RegisterSteps(ctx, tc)

	ratelimit.RegisterSteps(ctx, tc)
}
