// Package hosts resolves deployment host sets from Kubernetes pod label selectors.
package hosts

import (
	"context"
	"fmt"
	"sort"

	"verifier/internal/model"
	"verifier/pkg/logger"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Resolver lists the pods behind a job instance's new/old host selectors
type Resolver struct {
	client           kubernetes.Interface
	defaultNamespace string
}

// NewResolver creates a resolver from in-cluster config, falling back to kubeconfig
func NewResolver(defaultNamespace string) (*Resolver, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
		kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, &clientcmd.ConfigOverrides{})
		config, err = kubeConfig.ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get kubernetes config: %w", err)
		}
	}

	client, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return NewResolverWithClient(client, defaultNamespace), nil
}

// NewResolverWithClient wraps an existing clientset
func NewResolverWithClient(client kubernetes.Interface, defaultNamespace string) *Resolver {
	if defaultNamespace == "" {
		defaultNamespace = "default"
	}
	return &Resolver{client: client, defaultNamespace: defaultNamespace}
}

// ResolveHosts fills NewHosts / OldHosts of job from its selectors when they are empty.
// Returns whether anything was resolved.
func (r *Resolver) ResolveHosts(ctx context.Context, job *model.VerificationJobInstance) (bool, error) {
	namespace := job.Namespace
	if namespace == "" {
		namespace = r.defaultNamespace
	}

	resolved := false
	if len(job.NewHosts) == 0 && job.NewHostSelector != "" {
		hosts, err := r.listHosts(ctx, namespace, job.NewHostSelector)
		if err != nil {
			return false, err
		}
		job.NewHosts = hosts
		resolved = true
	}
	if len(job.OldHosts) == 0 && job.OldHostSelector != "" {
		hosts, err := r.listHosts(ctx, namespace, job.OldHostSelector)
		if err != nil {
			return false, err
		}
		job.OldHosts = hosts
		resolved = true
	}

	if resolved {
		logger.InfoCtx(ctx, "resolved hosts for job instance %s: new=%d old=%d", job.ID, len(job.NewHosts), len(job.OldHosts))
	}
	return resolved, nil
}

func (r *Resolver) listHosts(ctx context.Context, namespace, selector string) ([]string, error) {
	pods, err := r.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods for selector %q: %w", selector, err)
	}

	hosts := make([]string, 0, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		if pod.DeletionTimestamp != nil || pod.Status.Phase != corev1.PodRunning {
			continue
		}
		hosts = append(hosts, pod.Name)
	}
	sort.Strings(hosts)
	return hosts, nil
}
