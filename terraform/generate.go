package terraform

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// GenerateInput carries everything the generated configuration depends on.
type GenerateInput struct {
	Regions        []string
	InstanceType   string
	KeyName        string
	PublicKeyPath  string
	InstanceCounts map[string]int
	AMIs           map[string]string
	ProjectTag     string
}

type regionData struct {
	Code       string // AWS region code, e.g. us-east-1
	Label      string // terraform resource label, e.g. us_east_1
	CIDRIndex  int
	AMI        string
	Count      int
	VPCCIDR    string
	SubnetCIDR string
}

type templateData struct {
	Regions       []regionData
	InstanceType  string
	KeyName       string
	PublicKeyPath string
	ProjectTag    string
}

// Generate writes provider.tf, variables.tf, main.tf and outputs.tf into dir.
// Previously generated files are overwritten; terraform state is left alone.
func Generate(dir string, in *GenerateInput) error {
	if len(in.Regions) == 0 {
		return fmt.Errorf("no regions to generate terraform for")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data := templateData{
		InstanceType:  in.InstanceType,
		KeyName:       in.KeyName,
		PublicKeyPath: in.PublicKeyPath,
		ProjectTag:    in.ProjectTag,
	}
	for i, region := range in.Regions {
		count := in.InstanceCounts[region]
		if count == 0 {
			count = 1
		}
		data.Regions = append(data.Regions, regionData{
			Code:       region,
			Label:      ResourceLabel(region),
			CIDRIndex:  i,
			AMI:        in.AMIs[region],
			Count:      count,
			VPCCIDR:    fmt.Sprintf("10.%d.0.0/16", i),
			SubnetCIDR: fmt.Sprintf("10.%d.1.0/24", i),
		})
	}

	files := map[string]string{
		"provider.tf":  providerTemplate,
		"variables.tf": variablesTemplate,
		"main.tf":      mainTemplate,
		"outputs.tf":   outputsTemplate,
	}
	for name, tmpl := range files {
		t, err := template.New(name).Parse(tmpl)
		if err != nil {
			return fmt.Errorf("parsing %s template: %w", name, err)
		}
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := t.Execute(f, data); err != nil {
			f.Close()
			return fmt.Errorf("rendering %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Debug("generated terraform file", slog.String("file", name))
	}
	slog.Info("generated terraform configuration", slog.String("dir", dir), slog.Int("regions", len(in.Regions)))
	return nil
}

// ResourceLabel converts a region code to a valid terraform resource label.
func ResourceLabel(region string) string {
	return strings.ReplaceAll(region, "-", "_")
}

const providerTemplate = `# Generated by awsbenchmark. DO NOT EDIT MANUALLY.

terraform {
  required_version = ">= 1.0.0"
  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = "~> 4.0"
    }
  }
}
{{range .Regions}}
provider "aws" {
  alias  = "{{.Label}}"
  region = "{{.Code}}"
}
{{end}}`

const variablesTemplate = `# Generated by awsbenchmark. DO NOT EDIT MANUALLY.

variable "instance_type" {
  description = "EC2 instance type"
  type        = string
  default     = "{{.InstanceType}}"
}

variable "key_name" {
  description = "SSH key name registered with each region"
  type        = string
  default     = "{{.KeyName}}"
}

variable "public_key_path" {
  description = "Path to the SSH public key imported into each region"
  type        = string
  default     = "{{.PublicKeyPath}}"
}

variable "ami_ids" {
  description = "AMI IDs for each region (Amazon Linux 2)"
  type        = map(string)
  default = {
{{- range .Regions}}
    "{{.Code}}" = "{{.AMI}}"
{{- end}}
  }
}

variable "vpc_cidr_blocks" {
  description = "CIDR blocks for VPCs in each region"
  type        = map(string)
  default = {
{{- range .Regions}}
    "{{.Code}}" = "{{.VPCCIDR}}"
{{- end}}
  }
}

variable "subnet_cidr_blocks" {
  description = "CIDR blocks for subnets in each region"
  type        = map(string)
  default = {
{{- range .Regions}}
    "{{.Code}}" = "{{.SubnetCIDR}}"
{{- end}}
  }
}

variable "instance_counts" {
  description = "Number of EC2 instances to create in each region"
  type        = map(number)
  default = {
{{- range .Regions}}
    "{{.Code}}" = {{.Count}}
{{- end}}
  }
}

variable "project_tags" {
  description = "Tags applied to every resource"
  type        = map(string)
  default = {
    Project = "{{.ProjectTag}}"
  }
}
`

const mainTemplate = `# Generated by awsbenchmark. DO NOT EDIT MANUALLY.
{{range .Regions}}
# --- {{.Code}} ---

resource "aws_vpc" "{{.Label}}" {
  provider             = aws.{{.Label}}
  cidr_block           = var.vpc_cidr_blocks["{{.Code}}"]
  enable_dns_support   = true
  enable_dns_hostnames = true
  tags                 = merge(var.project_tags, { Name = "benchmark-{{.Code}}" })
}

resource "aws_subnet" "{{.Label}}" {
  provider                = aws.{{.Label}}
  vpc_id                  = aws_vpc.{{.Label}}.id
  cidr_block              = var.subnet_cidr_blocks["{{.Code}}"]
  map_public_ip_on_launch = true
  tags                    = var.project_tags
}

resource "aws_internet_gateway" "{{.Label}}" {
  provider = aws.{{.Label}}
  vpc_id   = aws_vpc.{{.Label}}.id
  tags     = var.project_tags
}

resource "aws_route_table" "{{.Label}}" {
  provider = aws.{{.Label}}
  vpc_id   = aws_vpc.{{.Label}}.id

  route {
    cidr_block = "0.0.0.0/0"
    gateway_id = aws_internet_gateway.{{.Label}}.id
  }

  tags = var.project_tags
}

resource "aws_route_table_association" "{{.Label}}" {
  provider       = aws.{{.Label}}
  subnet_id      = aws_subnet.{{.Label}}.id
  route_table_id = aws_route_table.{{.Label}}.id
}

resource "aws_security_group" "{{.Label}}" {
  provider = aws.{{.Label}}
  name     = "benchmark-{{.Code}}"
  vpc_id   = aws_vpc.{{.Label}}.id

  ingress {
    description = "SSH"
    from_port   = 22
    to_port     = 22
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }

  ingress {
    description = "iperf3 TCP"
    from_port   = 5201
    to_port     = 5201
    protocol    = "tcp"
    cidr_blocks = ["0.0.0.0/0"]
  }

  ingress {
    description = "iperf3 UDP"
    from_port   = 5201
    to_port     = 5201
    protocol    = "udp"
    cidr_blocks = ["0.0.0.0/0"]
  }

  ingress {
    description = "ICMP"
    from_port   = -1
    to_port     = -1
    protocol    = "icmp"
    cidr_blocks = ["0.0.0.0/0"]
  }

  egress {
    from_port   = 0
    to_port     = 0
    protocol    = "-1"
    cidr_blocks = ["0.0.0.0/0"]
  }

  tags = var.project_tags
}

resource "aws_key_pair" "{{.Label}}" {
  provider   = aws.{{.Label}}
  key_name   = var.key_name
  public_key = file(var.public_key_path)
}

resource "aws_instance" "{{.Label}}" {
  provider                    = aws.{{.Label}}
  count                       = var.instance_counts["{{.Code}}"]
  ami                         = var.ami_ids["{{.Code}}"]
  instance_type               = var.instance_type
  subnet_id                   = aws_subnet.{{.Label}}.id
  vpc_security_group_ids      = [aws_security_group.{{.Label}}.id]
  key_name                    = aws_key_pair.{{.Label}}.key_name
  associate_public_ip_address = true
  tags                        = merge(var.project_tags, { Name = "benchmark-{{.Code}}-${count.index}" })
}
{{end}}`

const outputsTemplate = `# Generated by awsbenchmark. DO NOT EDIT MANUALLY.

output "vpc_ids" {
  description = "IDs of the created VPCs"
  value = {
{{- range .Regions}}
    "{{.Code}}" = aws_vpc.{{.Label}}.id
{{- end}}
  }
}

output "subnet_ids" {
  description = "IDs of the created subnets"
  value = {
{{- range .Regions}}
    "{{.Code}}" = aws_subnet.{{.Label}}.id
{{- end}}
  }
}

output "instance_public_ips" {
  description = "Public IPs of the created EC2 instances"
  value = {
{{- range .Regions}}
    "{{.Code}}" = aws_instance.{{.Label}}[*].public_ip
{{- end}}
  }
}

output "instance_private_ips" {
  description = "Private IPs of the created EC2 instances"
  value = {
{{- range .Regions}}
    "{{.Code}}" = aws_instance.{{.Label}}[*].private_ip
{{- end}}
  }
}
`
