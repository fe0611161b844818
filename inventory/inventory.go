package inventory

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Instance describes one provisioned EC2 instance.
type Instance struct {
	Region    string `json:"region"`
	Index     int    `json:"index"`
	PublicIP  string `json:"public_ip"`
	PrivateIP string `json:"private_ip"`
}

// Addr returns the address tests should dial for this instance.
func (in *Instance) Addr(usePrivate bool) string {
	if usePrivate {
		return in.PrivateIP
	}
	return in.PublicIP
}

// Label names the instance in results. A region's first instance is labeled
// with the region alone so inter-region results stay readable.
func (in *Instance) Label() string {
	if in.Index == 0 {
		return in.Region
	}
	return fmt.Sprintf("%s_instance%d", in.Region, in.Index+1)
}

type regionIPs struct {
	PublicIPs  []string `json:"public_ips"`
	PrivateIPs []string `json:"private_ips"`
}

// Inventory holds all provisioned instances keyed by region.
type Inventory struct {
	Instances map[string]regionIPs `json:"instances"`
}

// terraform output -json shape, see the generated outputs.tf.
type terraformOutput struct {
	InstancePublicIPs struct {
		Value map[string][]string `json:"value"`
	} `json:"instance_public_ips"`
	InstancePrivateIPs struct {
		Value map[string][]string `json:"value"`
	} `json:"instance_private_ips"`
}

// FromTerraformOutput builds an inventory from the raw `terraform output -json` bytes.
func FromTerraformOutput(raw []byte) (*Inventory, error) {
	var out terraformOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing terraform output: %w", err)
	}
	if len(out.InstancePublicIPs.Value) == 0 {
		return nil, fmt.Errorf("terraform output contains no instance_public_ips; check outputs.tf")
	}

	inv := &Inventory{Instances: map[string]regionIPs{}}
	anyPublic := false
	for region, publicIPs := range out.InstancePublicIPs.Value {
		privateIPs, ok := out.InstancePrivateIPs.Value[region]
		if !ok {
			slog.Warn("region missing private IPs in terraform output, skipping", slog.String("region", region))
			continue
		}
		for _, ip := range publicIPs {
			if ip != "" {
				anyPublic = true
			}
		}
		inv.Instances[region] = regionIPs{PublicIPs: publicIPs, PrivateIPs: privateIPs}
	}

	if !anyPublic {
		slog.Warn("all public IPs are empty; instances are only reachable over private addresses")
	}
	return inv, nil
}

// Load reads a previously saved instance info file.
func Load(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	inv := &Inventory{}
	if err := json.Unmarshal(data, inv); err != nil {
		return nil, fmt.Errorf("parsing instance info %s: %w", path, err)
	}
	return inv, nil
}

// Save writes the inventory as an instance info JSON file.
func (inv *Inventory) Save(path string) error {
	data, err := json.MarshalIndent(inv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Regions returns all regions with at least one instance, sorted by name.
func (inv *Inventory) Regions() []string {
	regions := make([]string, 0, len(inv.Instances))
	for region := range inv.Instances {
		regions = append(regions, region)
	}
	slices.Sort(regions)
	return regions
}

// Region returns the instances provisioned in a region, in index order.
func (inv *Inventory) Region(region string) []Instance {
	ips, ok := inv.Instances[region]
	if !ok {
		return nil
	}
	out := make([]Instance, 0, len(ips.PublicIPs))
	for i, pub := range ips.PublicIPs {
		var priv string
		if i < len(ips.PrivateIPs) {
			priv = ips.PrivateIPs[i]
		}
		out = append(out, Instance{Region: region, Index: i, PublicIP: pub, PrivateIP: priv})
	}
	return out
}

// All returns every instance, grouped by region in region order.
func (inv *Inventory) All() []Instance {
	out := []Instance{}
	for _, region := range inv.Regions() {
		out = append(out, inv.Region(region)...)
	}
	return out
}

// Pair is an ordered source/destination combination. The source runs the
// client side of a test against the destination.
type Pair struct {
	Source Instance
	Dest   Instance
}

// Pairs enumerates the test matrix: every ordered inter-region pair between
// first instances, plus every intra-region instance pair when intraRegion is
// set. An instance is never paired with itself.
func (inv *Inventory) Pairs(intraRegion bool) []Pair {
	pairs := []Pair{}
	regions := inv.Regions()
	for _, src := range regions {
		for _, dst := range regions {
			if src == dst {
				if !intraRegion {
					continue
				}
				instances := inv.Region(src)
				for i, a := range instances {
					for j, b := range instances {
						if i == j {
							continue
						}
						pairs = append(pairs, Pair{Source: a, Dest: b})
					}
				}
				continue
			}

			srcInstances := inv.Region(src)
			dstInstances := inv.Region(dst)
			if len(srcInstances) == 0 || len(dstInstances) == 0 {
				slog.Warn("missing instances for region pair, skipping", slog.String("source", src), slog.String("dest", dst))
				continue
			}
			pairs = append(pairs, Pair{Source: srcInstances[0], Dest: dstInstances[0]})
		}
	}
	return pairs
}

// FanOut enumerates the one-to-many matrix for a server region: the server's
// first instance paired with the first instance of every other region, plus
// the server region's remaining instances when intraRegion is set.
func (inv *Inventory) FanOut(serverRegion string, intraRegion bool) (Instance, []Instance, error) {
	servers := inv.Region(serverRegion)
	if len(servers) == 0 {
		return Instance{}, nil, fmt.Errorf("no instances in server region %s", serverRegion)
	}
	server := servers[0]

	clients := []Instance{}
	for _, region := range inv.Regions() {
		if region == serverRegion {
			if !intraRegion {
				continue
			}
			for _, in := range inv.Region(region)[1:] {
				clients = append(clients, in)
			}
			continue
		}
		instances := inv.Region(region)
		if len(instances) == 0 {
			continue
		}
		clients = append(clients, instances[0])
	}
	if len(clients) == 0 {
		return Instance{}, nil, fmt.Errorf("no client instances for server region %s", serverRegion)
	}
	return server, clients, nil
}
