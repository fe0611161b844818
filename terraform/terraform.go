// Package terraform generates the per-region infrastructure configuration and
// drives the terraform binary through init, apply, output and destroy.
package terraform

import (
	"fmt"
	"log/slog"

	"github.com/hanksong/awsbenchmark/execx"
)

// Terraform drives the terraform binary in a working directory.
type Terraform struct {
	dir    string
	runner execx.Runner
}

func New(dir string, runner execx.Runner) *Terraform {
	return &Terraform{dir: dir, runner: runner}
}

func (tf *Terraform) Init() error {
	slog.Info("terraform init", slog.String("dir", tf.dir))
	if err := tf.runner.Run(tf.dir, "terraform", "init", "-input=false"); err != nil {
		return fmt.Errorf("terraform init: %w", err)
	}
	return nil
}

func (tf *Terraform) Apply() error {
	slog.Info("terraform apply", slog.String("dir", tf.dir))
	if err := tf.runner.Run(tf.dir, "terraform", "apply", "-auto-approve", "-input=false"); err != nil {
		return fmt.Errorf("terraform apply: %w", err)
	}
	return nil
}

func (tf *Terraform) Destroy() error {
	slog.Info("terraform destroy", slog.String("dir", tf.dir))
	if err := tf.runner.Run(tf.dir, "terraform", "destroy", "-auto-approve", "-input=false"); err != nil {
		return fmt.Errorf("terraform destroy: %w", err)
	}
	return nil
}

// OutputJSON returns the raw bytes of `terraform output -json`.
func (tf *Terraform) OutputJSON() ([]byte, error) {
	out, err := tf.runner.Output(tf.dir, "terraform", "output", "-json")
	if err != nil {
		return nil, fmt.Errorf("terraform output: %w", err)
	}
	return out, nil
}
