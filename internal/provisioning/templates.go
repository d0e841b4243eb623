package provisioning

import _ "embed"

// CloudFormation templates shipped with the binary. The stacks are
// always created from these inline bodies so the orchestrator never
// depends on a template bucket.
var (
	//go:embed templates/ec2_instance_role.yaml
	ec2InstanceRoleTemplate string

	//go:embed templates/vpc.yaml
	vpcTemplate string

	//go:embed templates/asg_ubuntu.yaml
	asgTemplate string
)
