// Package provisioning resolves a device identity to the hub it has been
// assigned to, using the Device Provisioning Service (DPS) REST protocol.
//
// The protocol has two phases:
//
//  1. Register: PUT {scope}/registrations/{device}/register. The service
//     answers with an operation id (or an errorCode, which is fatal).
//  2. Poll: GET {scope}/registrations/{device}/operations/{operationId}
//     until the status is "assigned". While the status is "assigning" the
//     client waits PollInterval and retries, up to MaxAttempts retries.
//
// Polling is an explicit bounded loop; ErrTimeout is returned once the
// ceiling is exceeded.
//
// # Usage
//
//	client := provisioning.NewClient(provisioning.Options{Endpoint: cfg.Provisioning.Endpoint})
//	assignment, err := client.Provision(ctx, identity)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(assignment.Host)
package provisioning
