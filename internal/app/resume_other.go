//go:build !unix

package app

import "context"

func (a *App) watchResume(context.Context) {}
