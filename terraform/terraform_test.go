package terraform

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls  []string
	output []byte
	err    error
}

func (r *fakeRunner) Run(dir string, name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

func (r *fakeRunner) Output(dir string, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.output, r.err
}

func TestTerraformCommands(t *testing.T) {
	runner := &fakeRunner{output: []byte(`{"instance_public_ips": {}}`)}
	tf := New(t.TempDir(), runner)

	require.NoError(t, tf.Init())
	require.NoError(t, tf.Apply())
	out, err := tf.OutputJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"instance_public_ips": {}}`, string(out))
	require.NoError(t, tf.Destroy())

	assert.Equal(t, []string{
		"terraform init -input=false",
		"terraform apply -auto-approve -input=false",
		"terraform output -json",
		"terraform destroy -auto-approve -input=false",
	}, runner.calls)
}

func TestTerraformErrorsWrapped(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("exit status 1")}
	tf := New(t.TempDir(), runner)

	assert.ErrorContains(t, tf.Init(), "terraform init")
	assert.ErrorContains(t, tf.Apply(), "terraform apply")
	assert.ErrorContains(t, tf.Destroy(), "terraform destroy")
	_, err := tf.OutputJSON()
	assert.ErrorContains(t, err, "terraform output")
}
